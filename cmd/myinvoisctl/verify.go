package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/document"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois/signer"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [payload-file]",
	Short: "Verifica la firma de un documento enviado (JSON o base64)",
	Long: `Lee un documento tal como se guardó en el libro (base64) o como JSON,
recalcula los digests y valida la firma contra el certificado embebido.
Muestra el hash canónico para compararlo con document_hash.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("leer %s: %w", args[0], err)
		}
		raw := strings.TrimSpace(string(data))
		var root *document.Node
		if strings.HasPrefix(raw, "{") {
			root, err = document.Parse([]byte(raw))
		} else {
			root, err = document.ParseBase64(raw)
		}
		if err != nil {
			return fmt.Errorf("documento ilegible: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "hash canónico: %s\n", document.Hash(document.Canonical(root)))
		cert, err := signer.Verify(root)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "firma válida\nfirmante: %s\nserie: %X\nvence: %s\n",
			cert.Subject.CommonName, cert.SerialNumber, cert.NotAfter.Format("2006-01-02"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
