package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/dto"
	"github.com/tikusl4ju/myinvoice-sync/internal/bootstrap"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois/signer"
)

var certPassword string

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Certificados de firma (bundle PEM o .p12)",
}

var certImportCmd = &cobra.Command{
	Use:   "import [file.pem|file.p12]",
	Short: "Guarda el certificado y lo deja activo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("leer %s: %w", args[0], err)
		}
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			var cert *entity.Certificate
			if isP12(args[0]) {
				cert, err = app.Certificates.ImportP12(cmd.Context(), data, certPassword)
			} else {
				cert, err = app.Certificates.Upload(cmd.Context(), string(data))
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.NewCertificateResponse(cert, time.Now()))
		})
	},
}

var certInspectCmd = &cobra.Command{
	Use:   "inspect [file.pem|file.p12]",
	Short: "Muestra los metadatos del certificado sin guardarlo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("leer %s: %w", args[0], err)
		}
		bundle := string(data)
		if isP12(args[0]) {
			if bundle, err = signer.BundleFromP12(data, certPassword); err != nil {
				return err
			}
		}
		cert, err := signer.Describe(bundle)
		if err != nil {
			return err
		}
		return printJSON(cmd, dto.NewCertificateResponse(cert, time.Now()))
	},
}

func isP12(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		return true
	}
	return false
}

func init() {
	certCmd.PersistentFlags().StringVarP(&certPassword, "password", "p", "", "contraseña del .p12")
	certCmd.AddCommand(certImportCmd, certInspectCmd)
	rootCmd.AddCommand(certCmd)
}
