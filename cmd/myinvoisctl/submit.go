package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/dto"
	"github.com/tikusl4ju/myinvoice-sync/internal/bootstrap"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Envía documentos al API de LHDN",
}

var submitTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Envía una factura de prueba con datos fijos",
	Example: `  # Probar credenciales y firma contra el entorno configurado
  myinvoisctl submit test`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			rec, err := app.Lifecycle.SubmitTest(cmd.Context())
			if err != nil {
				return err
			}
			return printRecord(cmd, app, rec)
		})
	},
}

var submitOrderCmd = &cobra.Command{
	Use:   "order [order-id]",
	Short: "Envía (o encola) la factura de un pedido guardado",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("order-id inválido: %q", args[0])
		}
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			o, err := app.Orders.FindByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if o == nil {
				return fmt.Errorf("pedido %d no encontrado", id)
			}
			rec, err := app.Lifecycle.SubmitOrder(cmd.Context(), o)
			if err != nil {
				return err
			}
			return printRecord(cmd, app, rec)
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [document-no]",
	Short: "Consulta el estado remoto de un documento",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			rec, err := app.Lifecycle.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec.RemoteID == "" {
				return fmt.Errorf("%s aún no tiene UUID remoto (estado %s)", rec.DocumentNo, rec.Status)
			}
			out, err := app.Lifecycle.SyncStatus(cmd.Context(), rec.RemoteID)
			if err != nil {
				return err
			}
			return printRecord(cmd, app, out)
		})
	},
}

func printRecord(cmd *cobra.Command, app *bootstrap.App, rec *entity.InvoiceRecord) error {
	share, _ := billing.ShareURL(app.Config.MyInvois.PortalHost, rec)
	return printJSON(cmd, dto.NewRecordResponse(rec, share))
}

func init() {
	submitCmd.AddCommand(submitTestCmd, submitOrderCmd)
	rootCmd.AddCommand(submitCmd, syncCmd)
}
