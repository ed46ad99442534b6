package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/vquery/dom"
	"github.com/chrisuehlinger/vquery/js"
	"github.com/chrisuehlinger/vquery/loop"
)

func newRunCmd(a *app) *cobra.Command {
	var page string
	cmd := &cobra.Command{
		Use:   "run <script.js>",
		Short: "Run a script against an HTML document",
		Long: `Run executes a JavaScript file with $ bound to the document given by --html,
then keeps the event loop running until no timer or request remains.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScript(cmd, args[0], page)
		},
	}
	cmd.Flags().StringVar(&page, "html", "", "HTML document: a path, file:// or http(s) URL")
	return cmd
}

func (a *app) runScript(cmd *cobra.Command, script, page string) error {
	code, err := os.ReadFile(script)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Script.RunTimeout)
	defer cancel()

	httpClient, err := a.httpClient()
	if err != nil {
		return err
	}
	defer httpClient.CloseIdleConnections()

	doc := dom.NewDocument()
	if page != "" {
		if doc, err = httpClient.LoadDocument(ctx, page); err != nil {
			return err
		}
	}

	lp := loop.New(a.logger)
	defer lp.Close()

	rt := js.NewRuntime(lp, doc,
		js.WithLogger(a.logger),
		js.WithOutput(cmd.OutOrStdout()),
		js.WithAjax(a.ajaxClient(httpClient, lp)),
	)
	a.logger.Debug("running script", zap.String("script", script), zap.String("document", doc.URL()))

	if err := rt.Run(ctx, string(code), script); err != nil {
		return err
	}
	// Errors thrown later by handlers and callbacks.
	if errs := rt.Errors(); len(errs) > 0 {
		return fmt.Errorf("%s: %w", script, errors.Join(errs...))
	}
	return nil
}
