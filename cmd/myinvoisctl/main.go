// Command myinvoisctl es la CLI de operación: migraciones, envíos de prueba,
// pasadas del planificador, certificados y verificación de payloads.
package main

func main() {
	Execute()
}
