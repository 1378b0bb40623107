// Package commands defines the handoffctl CLI and wires the RPC client
// for subcommands.
//
// Commands
//
//   - status         Show daemon health, exchange phase and active account
//   - export         Publish the stored credential for another device
//   - import         Submit a scanned or pasted credential payload
//   - cancel         Abort the exchange in progress
//   - reset          Return the exchange to idle
//   - scan-error     Report a scanner failure during an active scan
//   - watch          Stream exchange transitions as they happen
//   - backup export  Write an encrypted credential backup blob
//   - backup restore Restore a credential from a backup blob
//
// # Implementation
//
// The root command builds a single rpc.Client before any subcommand
// runs. Address and token come from flags, falling back to the
// VEIL_RPC_ADDR and VEIL_RPC_TOKEN environment variables so scripts can
// configure the daemon connection once.
package commands
