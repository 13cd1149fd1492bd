package main

import (
	"github.com/spf13/cobra"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/scheduler"
	"github.com/tikusl4ju/myinvoice-sync/internal/bootstrap"
)

var passCmd = &cobra.Command{
	Use:   "pass [sync|retry|queue|all]",
	Short: "Corre una pasada del planificador ahora",
	Long: `Corre una pasada con las mismas reglas que el runner periódico: respeta el
interruptor de ajustes y toma el lock de la pasada, así que no se pisa con
otra réplica que esté corriendo la misma pasada.`,
	Example: `  myinvoisctl pass retry
  myinvoisctl pass all`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: append(append([]string{}, scheduler.Passes...), "all"),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			if args[0] == "all" {
				return printJSON(cmd, app.Scheduler.RunAll(cmd.Context()))
			}
			res, err := app.Scheduler.RunPass(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

func init() {
	rootCmd.AddCommand(passCmd)
}
