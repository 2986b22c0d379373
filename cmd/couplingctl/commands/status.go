package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// statusView mirrors couplingd's GET /status JSON response.
type statusView struct {
	State       string           `json:"state"`
	FeedbackMap map[string][]int `json:"feedback_map,omitempty"`
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current connectivity state and feedback map",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			sv, err := fetchStatus()
			if err != nil {
				return fmt.Errorf("fetch status: %w", err)
			}

			out, err := formatStatus(sv, outputFormat)
			if err != nil {
				return fmt.Errorf("format status: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

func fetchStatus() (*statusView, error) {
	resp, err := client.Get("http://" + serverAddr + "/status")
	if err != nil {
		return nil, fmt.Errorf("get /status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errStatusRequestFailed, resp.StatusCode)
	}

	var sv statusView
	if err := json.NewDecoder(resp.Body).Decode(&sv); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &sv, nil
}

func formatStatus(sv *statusView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(sv, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal status to JSON: %w", err)
		}
		return string(data) + "\n", nil
	case formatTable:
		return formatStatusTable(sv), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatStatusTable(sv *statusView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "State:\t%s\n", sv.State)
	fmt.Fprintf(w, "Feedback entries:\t%d\n", len(sv.FeedbackMap))

	if len(sv.FeedbackMap) > 0 {
		fmt.Fprintln(w, "RANK\tOVERLAP")
		for rank, ids := range sv.FeedbackMap {
			fmt.Fprintf(w, "%s\t%v\n", rank, ids)
		}
	}

	w.Flush()
	return buf.String()
}
