package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/consentd/internal/app"
	"github.com/dropDatabas3/consentd/internal/audit"
)

func newAuditCmd(c *cli) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Consulta el historial de consentimiento",
	}

	var accountID, clientID, out string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lista las entradas de un par (cuenta, client), más recientes primero",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(accountID) == "" || strings.TrimSpace(clientID) == "" {
				return fmt.Errorf("--account y --client son requeridos")
			}

			conn, err := app.OpenStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			entries, err := audit.New(conn.ConsentLogs(), c.cfg.Audit.MaxEntries).List(cmd.Context(), accountID, clientID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, "sin entradas")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%s  %-13s  %s\n", e.Timestamp.UTC().Format(time.RFC3339), e.Kind, strings.Join(e.Messages, " | "))
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&accountID, "account", "", "ID de la cuenta")
	listCmd.Flags().StringVar(&clientID, "client", "", "ID del client")
	listCmd.Flags().StringVar(&out, "out", "text", "Formato de salida: json|text")

	auditCmd.AddCommand(listCmd)
	return auditCmd
}
