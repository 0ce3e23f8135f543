package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"harvester/pkg/auth"
	"harvester/pkg/bgg"
	"harvester/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API tokens",
	Long: `Manage API tokens for the remote sources.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only, e.g. BGG_TOKEN)

Never share your token or config files!`,
}

// setTokenCmd represents the auth set-token command
var setTokenCmd = &cobra.Command{
	Use:   "set-token [source]",
	Short: "Store an API token securely",
	Long: `Store an API token in the system keychain or the encrypted file.

The token is read without echo. Source defaults to bgg, the only source that
needs one.`,
	Example: `  harvester auth set-token
  echo "$TOKEN" | harvester auth set-token bgg`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSetToken,
}

// clearTokenCmd represents the auth clear-token command
var clearTokenCmd = &cobra.Command{
	Use:   "clear-token [source]",
	Short: "Remove a stored token",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClearToken,
}

// showTokenCmd represents the auth show command
var showTokenCmd = &cobra.Command{
	Use:   "show [source]",
	Short: "Show where a token is stored",
	Long:  `Show which store holds the token for a source, with the value masked.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShowToken,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setTokenCmd)
	authCmd.AddCommand(clearTokenCmd)
	authCmd.AddCommand(showTokenCmd)
}

func tokenSourceArg(args []string) string {
	if len(args) > 0 {
		return strings.ToLower(strings.TrimSpace(args[0]))
	}
	return bgg.SourceName
}

func runSetToken(cmd *cobra.Command, args []string) error {
	source := tokenSourceArg(args)

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if term.IsTerminal(int(syscall.Stdin)) {
		auth.ShowTokenGuide(ui.Output())
		fmt.Fprintf(ui.Output(), "\n%s token (hidden): ", source)
	}

	token, err := readPassword(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	store, err := manager.Store(source, token)
	if err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("✓ %s token stored in %s", source, store))
	return nil
}

func runClearToken(cmd *cobra.Command, args []string) error {
	source := tokenSourceArg(args)

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(source); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("✓ %s token removed", source))
	if os.Getenv(auth.EnvVar(source)) != "" {
		ui.PrintWarning(fmt.Sprintf("%s is still set in the environment", auth.EnvVar(source)))
	}
	return nil
}

func runShowToken(cmd *cobra.Command, args []string) error {
	source := tokenSourceArg(args)

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	token, store, err := manager.Retrieve(source)
	if err != nil {
		auth.ShowQuickTokenHint(ui.Output())
		return err
	}

	ui.PrintInfo("Source", source)
	ui.PrintInfo("Token", auth.Mask(token.Value))
	ui.PrintInfo("Stored in", store)
	if !token.LastModified.IsZero() {
		ui.PrintInfo("Updated", humanize.Time(token.LastModified))
	}
	return nil
}

// readPassword reads a line without echo when in is a terminal
func readPassword(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(ui.Output())
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
