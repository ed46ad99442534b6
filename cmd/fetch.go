package cmd

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/vquery/ajax"
	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/loop"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newFetchCmd(a *app) *cobra.Command {
	var (
		s       ajax.Settings
		headers []string
	)
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Perform one ajax request and print the decoded response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s.URL = args[0]
			h, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			s.Header = h
			return a.fetch(cmd, s)
		},
	}
	cmd.Flags().StringVarP(&s.Method, "method", "X", "GET", "request method")
	cmd.Flags().StringVar(&s.DataType, "type", "", "response data type: json, html or text (default inferred)")
	cmd.Flags().StringVarP(&s.Body, "data", "d", "", "request body")
	cmd.Flags().StringVar(&s.ContentType, "content-type", "application/x-www-form-urlencoded", "content type of --data")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, `request header as "Name: value" (repeatable)`)
	cmd.Flags().DurationVar(&s.Timeout, "timeout", 0, "request timeout (default from ajax.default_timeout)")
	return cmd
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	h := make(map[string]string, len(raw))
	for _, line := range raw {
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q", line)
		}
		h[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return h, nil
}

func (a *app) fetch(cmd *cobra.Command, s ajax.Settings) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Script.RunTimeout)
	defer cancel()

	httpClient, err := a.httpClient()
	if err != nil {
		return err
	}
	defer httpClient.CloseIdleConnections()

	lp := loop.New(a.logger)
	defer lp.Close()
	client := a.ajaxClient(httpClient, lp)

	var (
		body   any
		req    *ajax.Request
		failed error
	)
	err = lp.Post(func() {
		client.Do(s).
			Done(func(_ any, args ...any) []any {
				body, req = args[0], args[2].(*ajax.Request)
				return nil
			}).
			Fail(func(_ any, args ...any) []any {
				cause, _ := args[2].(error)
				failed = fmt.Errorf("fetch %s: %v: %w", s.URL, args[1], cause)
				return nil
			})
	})
	if err != nil {
		return err
	}
	if err := lp.RunUntilIdle(ctx); err != nil {
		return err
	}
	if failed != nil {
		return failed
	}

	a.logger.Info("fetched",
		zap.String("url", s.URL),
		zap.Int("status", req.Status()),
		zap.String("request_id", req.ID()),
	)
	return render(cmd, body)
}

// render prints a decoded body: JSON values indented, nodes as HTML.
func render(cmd *cobra.Command, body any) error {
	out := cmd.OutOrStdout()
	switch v := body.(type) {
	case string:
		_, err := fmt.Fprintln(out, v)
		return err
	case []*dom.Node:
		for _, n := range v {
			if el := n.AsElement(); el != nil {
				fmt.Fprintln(out, el.OuterHTML())
			} else if text := strings.TrimSpace(n.TextContent()); text != "" {
				fmt.Fprintln(out, text)
			}
		}
		return nil
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	}
}
