package main

import (
	"go-bank-sync/app"
)

// @title           Go-Bank-Sync API
// @version         1.0
// @description     Offline-capable money-transfer ledger with batch sync reconciliation.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
