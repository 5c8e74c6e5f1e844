// =============================================================================
// Purchase Ledger - Main Entry Point
// =============================================================================
//
// USAGE:
//   ledger commit   - Record purchases in the workbook
//   ledger reinit   - Rebuild every category sheet from the vendor sheets
//   ledger import   - Import the items of another workbook
//   ledger config   - Write or check the configuration file
//   ledger version  - Display the application version
//
// ARCHITECTURE:
//   cmd/           : CLI command definitions (Cobra)
//   internal/      : the ledger engine (workbook access, classification,
//                    category aggregates, vendor ledger, bulk operations)
//   pkg/           : file management shared by the commands
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/purchase-ledger/cmd"
)

func main() {
	cmd.Execute()
}
