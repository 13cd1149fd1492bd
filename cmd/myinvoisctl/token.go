package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tikusl4ju/myinvoice-sync/pkg/jwt"
)

var (
	tokenUser    string
	tokenRole    string
	tokenMinutes int
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Emite un token Bearer para el API de operación",
	Example: `  myinvoisctl token --user ops@tienda --role operator
  myinvoisctl token --user admin --role admin --minutes 30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		minutes := tokenMinutes
		if minutes <= 0 {
			minutes = cfg.JWT.Expiration
		}
		tok, err := jwt.Generate(cfg.JWT.Secret, tokenUser, tokenRole, cfg.JWT.Issuer, minutes)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "identificador del operador")
	tokenCmd.Flags().StringVar(&tokenRole, "role", jwt.RoleOperator, "rol: admin u operator")
	tokenCmd.Flags().IntVar(&tokenMinutes, "minutes", 0, "vigencia en minutos (por defecto JWT_EXPIRATION)")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
