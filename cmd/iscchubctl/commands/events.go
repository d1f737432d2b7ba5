package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/iscc/iscc-hub/internal/cliutil"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query the HUB's declaration log",
}

var eventsListFrom uint64
var eventsListLimit int

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed events from a sequence number",
	RunE:  runEventsList,
}

var eventsShowCmd = &cobra.Command{
	Use:   "show <seq|iscc-id>",
	Short: "Show a single event by sequence number or ISCC-ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsShow,
}

var eventsDigestFrom uint64
var eventsDigestTo uint64

var eventsDigestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the rolling BLAKE3 digest over a sequence range",
	RunE:  runEventsDigest,
}

func init() {
	eventsListCmd.Flags().Uint64Var(&eventsListFrom, "from", 0, "First sequence number to list")
	eventsListCmd.Flags().IntVar(&eventsListLimit, "limit", 50, "Maximum number of events to list")

	eventsDigestCmd.Flags().Uint64Var(&eventsDigestFrom, "from", 1, "First sequence number, inclusive")
	eventsDigestCmd.Flags().Uint64Var(&eventsDigestTo, "to", 0, "Last sequence number, inclusive")
	_ = eventsDigestCmd.MarkFlagRequired("to")

	eventsCmd.AddCommand(eventsListCmd, eventsShowCmd, eventsDigestCmd)
}

// apiResponse mirrors pkg/hubapi.Response, decoded loosely so the CLI
// doesn't need to import the server's handler package.
type apiResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// event mirrors eventstore.Event's wire shape, the fields iscchubctl
// renders in its tables.
type event struct {
	Seq        uint64    `json:"seq"`
	IsccID     string    `json:"iscc_id"`
	TsMicros   uint64    `json:"ts_micros"`
	ServerID   uint16    `json:"server_id"`
	Pubkey     string    `json:"pubkey"`
	Nonce      string    `json:"nonce"`
	Datahash   string    `json:"datahash"`
	IsccCode   string    `json:"iscc_code"`
	Gateway    string    `json:"gateway"`
	ReceivedAt time.Time `json:"received_at"`
}

func apiGet(path string, out interface{}) error {
	resp, err := http.Get(serverAddr + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("malformed response (status %d): %s", resp.StatusCode, body)
	}
	if env.Status != "ok" {
		if env.Error != nil {
			return fmt.Errorf("%s: %s", env.Error.Kind, env.Error.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return json.Unmarshal(env.Data, out)
}

func runEventsList(cmd *cobra.Command, args []string) error {
	path := fmt.Sprintf("/events?from=%d&limit=%d", eventsListFrom, eventsListLimit)
	var events []event
	if err := apiGet(path, &events); err != nil {
		return err
	}

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			strconv.FormatUint(e.Seq, 10),
			e.IsccID,
			e.IsccCode,
			e.ReceivedAt.Format(time.RFC3339),
		})
	}
	cliutil.PrintTable(os.Stdout, []string{"SEQ", "ISCC-ID", "ISCC", "RECEIVED"}, rows)
	return nil
}

func runEventsShow(cmd *cobra.Command, args []string) error {
	key := args[0]

	var path string
	if _, err := strconv.ParseUint(key, 10, 64); err == nil {
		path = "/events/" + key
	} else {
		path = "/iscc-id/" + key
	}

	var e event
	if err := apiGet(path, &e); err != nil {
		return err
	}

	cliutil.PrintKV(os.Stdout, [][2]string{
		{"seq", strconv.FormatUint(e.Seq, 10)},
		{"iscc_id", e.IsccID},
		{"iscc_code", e.IsccCode},
		{"ts_micros", strconv.FormatUint(e.TsMicros, 10)},
		{"server_id", strconv.FormatUint(uint64(e.ServerID), 10)},
		{"datahash", e.Datahash},
		{"pubkey", e.Pubkey},
		{"nonce", e.Nonce},
		{"gateway", e.Gateway},
		{"received_at", e.ReceivedAt.Format(time.RFC3339)},
	})
	return nil
}

func runEventsDigest(cmd *cobra.Command, args []string) error {
	path := fmt.Sprintf("/log/digest?from=%d&to=%d", eventsDigestFrom, eventsDigestTo)
	var out struct {
		Digest string `json:"digest"`
	}
	if err := apiGet(path, &out); err != nil {
		return err
	}
	fmt.Println(out.Digest)
	return nil
}
