package cmd

import "github.com/spf13/cobra"

// Commander contributes one command to the root. A Use with spaces, such as
// "rooms list", nests the command under its parents.
type Commander interface {
	Command() *cobra.Command
}
