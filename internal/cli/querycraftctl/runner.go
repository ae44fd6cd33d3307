// Package querycraftctl is the command-line client for the QueryCraft API.
package querycraftctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const parquetContentType = "application/vnd.apache.parquet"

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }

// errReported marks a failure whose message was already printed.
var errReported = errors.New("reported")

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the request or the question failed, 2 on bad usage.
func Run(ctx context.Context, args []string, defaults Options) int {
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := NewRootCommand(defaults)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, errReported) {
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	var usage usageError
	if errors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") {
		_, _ = fmt.Fprintln(stderr, root.UsageString())
		return 2
	}
	return 1
}

func NewRootCommand(defaults Options) *cobra.Command {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	c := &client{http: defaults.HTTPClient}
	root := &cobra.Command{
		Use:           "querycraftctl",
		Short:         "Ask a QueryCraft server questions about its database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if c.http == nil {
				c.http = &http.Client{Timeout: c.timeout}
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })
	root.PersistentFlags().StringVar(&c.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8000"), "QueryCraft API base URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 90s)")

	root.AddCommand(
		newAskCommand(c, stdout, stderr),
		newGetCommand(c, stdout, "schema", "Show the schema description the model sees", "/api/v1/schema"),
		newGetCommand(c, stdout, "health", "Check that the server is up", "/v1/health"),
		newGetCommand(c, stdout, "ready", "Check that the store and model are available", "/v1/ready"),
	)
	return root
}

func newAskCommand(c *client, stdout, stderr io.Writer) *cobra.Command {
	var asJSON bool
	var exportPath string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Translate a question into SQL and show the result",
		Args: func(_ *cobra.Command, args []string) error {
			if strings.TrimSpace(strings.Join(args, " ")) == "" {
				return usageError{errors.New("a question is required")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]string{"text": strings.Join(args, " ")})
			if err != nil {
				return err
			}
			path := "/api/v1/query"
			if exportPath != "" {
				path = "/api/v1/query/export"
			}
			resp, err := c.do(cmd.Context(), http.MethodPost, path, payload)
			if err != nil {
				return err
			}
			if resp.status >= 400 {
				return fmt.Errorf("http %d: %s", resp.status, strings.TrimSpace(string(resp.body)))
			}

			if exportPath != "" && resp.contentType == parquetContentType {
				if err := os.WriteFile(exportPath, resp.body, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				_, _ = fmt.Fprintf(stdout, "wrote %d bytes to %s\n", len(resp.body), exportPath)
				return nil
			}
			if asJSON {
				return printJSON(stdout, resp.body)
			}

			var env envelope
			if err := json.Unmarshal(resp.body, &env); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return renderEnvelope(stdout, stderr, env)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response envelope")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the result as a Parquet file to this path")
	return cmd
}

func newGetCommand(c *client, stdout io.Writer, name, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			if resp.status >= 400 {
				return fmt.Errorf("http %d: %s", resp.status, strings.TrimSpace(string(resp.body)))
			}
			if name == "schema" {
				var body struct {
					Schema string `json:"schema"`
				}
				if err := json.Unmarshal(resp.body, &body); err == nil {
					_, _ = fmt.Fprintln(stdout, body.Schema)
					return nil
				}
			}
			return printJSON(stdout, resp.body)
		},
	}
}

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError{fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))}
	}
	return nil
}

type envelope struct {
	SQLQuery string            `json:"sql_query"`
	Data     []json.RawMessage `json:"data"`
	Error    *string           `json:"error"`
}

func renderEnvelope(stdout, stderr io.Writer, env envelope) error {
	if env.SQLQuery != "" {
		_, _ = fmt.Fprintln(stdout, pterm.NewStyle(pterm.FgCyan).Sprint(env.SQLQuery))
	}
	if env.Error != nil {
		_, _ = fmt.Fprintln(stderr, pterm.NewStyle(pterm.FgRed).Sprint(*env.Error))
		return errReported
	}
	if len(env.Data) == 0 {
		_, _ = fmt.Fprintln(stdout, "(no rows)")
		return nil
	}

	table, err := tableData(env.Data)
	if err != nil {
		return err
	}
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(table).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, _ = fmt.Fprintln(stdout, rendered)
	_, _ = fmt.Fprintf(stdout, "%d row(s)\n", len(env.Data))
	return nil
}

// tableData lays out rows under the column order of the first row.
func tableData(rows []json.RawMessage) (pterm.TableData, error) {
	header, _, err := decodeOrderedObject(rows[0])
	if err != nil {
		return nil, err
	}
	table := pterm.TableData{header}
	for _, raw := range rows {
		keys, values, err := decodeOrderedObject(raw)
		if err != nil {
			return nil, err
		}
		byKey := make(map[string]string, len(keys))
		for i, key := range keys {
			byKey[key] = values[i]
		}
		line := make([]string, len(header))
		for i, column := range header {
			line[i] = byKey[column]
		}
		table = append(table, line)
	}
	return table, nil
}

// decodeOrderedObject reads one JSON object keeping its key order, which a
// map would lose.
func decodeOrderedObject(raw json.RawMessage) ([]string, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, nil, fmt.Errorf("decode row: expected object")
	}
	var keys, values []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("decode row: %w", err)
		}
		key, _ := tok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("decode row value %q: %w", key, err)
		}
		keys = append(keys, key)
		values = append(values, formatCell(value))
	}
	return keys, values, nil
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

type client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

type response struct {
	status      int
	contentType string
	body        []byte
}

func (c *client) do(ctx context.Context, method, path string, payload []byte) (response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, body)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}
	return response{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: raw}, nil
}

func printJSON(w io.Writer, raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		_, _ = fmt.Fprintln(w, string(raw))
		return nil
	}
	_, _ = fmt.Fprintln(w, strings.TrimSpace(out.String()))
	return nil
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
