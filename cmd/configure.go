package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jonandersen/tasty/internal/api"
	"github.com/jonandersen/tasty/internal/config"
	"github.com/jonandersen/tasty/internal/keyring"
)

// passwordReader abstracts terminal password input for testing.
type passwordReader interface {
	ReadPassword() (string, error)
	IsTerminal() bool
}

// terminalReader reads passwords from the terminal using golang.org/x/term.
type terminalReader struct {
	fd int
}

// newTerminalReader creates a reader for the given file descriptor.
func newTerminalReader(fd int) *terminalReader {
	return &terminalReader{fd: fd}
}

func (r *terminalReader) ReadPassword() (string, error) {
	password, err := term.ReadPassword(r.fd)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func (r *terminalReader) IsTerminal() bool {
	return term.IsTerminal(r.fd)
}

// prompter abstracts interactive menu selection for testing.
type prompter interface {
	SelectOption(options []string) (int, error)
	ReadLine(prompt string) (string, error)
}

// terminalPrompter implements prompter using stdin. One scanner is
// shared across calls so sequential prompts keep their place in the
// input.
type terminalPrompter struct {
	scanner *bufio.Scanner
	writer  io.Writer
}

func newTerminalPrompter(r io.Reader, w io.Writer) *terminalPrompter {
	return &terminalPrompter{scanner: bufio.NewScanner(r), writer: w}
}

func (p *terminalPrompter) SelectOption(options []string) (int, error) {
	for {
		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("no input")
		}
		input := strings.TrimSpace(p.scanner.Text())
		idx, err := strconv.Atoi(input)
		if err != nil || idx < 1 || idx > len(options) {
			_, _ = fmt.Fprintf(p.writer, "Please enter a number between 1 and %d: ", len(options))
			continue
		}
		return idx - 1, nil // Convert to 0-indexed
	}
}

func (p *terminalPrompter) ReadLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(p.writer, prompt)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// configureOptions holds dependencies for the configure command.
// This allows for dependency injection in tests.
type configureOptions struct {
	configPath     string
	baseURL        string
	store          keyring.Store
	passwordReader passwordReader
	prompt         prompter
}

// newConfigureCmd creates the configure command with the given options.
func newConfigureCmd(opts configureOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure CLI credentials",
		Long: `Configure the CLI with your tastytrade username and password.

The password is validated against the API, stored in the system keyring,
and used to mint session tokens as needed.

Example:
  tasty configure
  tasty configure --account 5WT00001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd, opts, account)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Default account number (optional)")

	// Don't show usage info on validation errors - just show the error
	cmd.SilenceUsage = true

	return cmd
}

// reconfigureMenuOptions defines the menu options when already configured.
var reconfigureMenuOptions = []string{
	"Select different default account",
	"Enter new credentials",
	"View current configuration",
	"Clear stored credentials",
}

func runConfigure(cmd *cobra.Command, opts configureOptions, account string) error {
	// Verify we're running in an interactive terminal
	if !opts.passwordReader.IsTerminal() {
		return fmt.Errorf("configure requires an interactive terminal\nRun this command directly in your terminal (not piped or in a script)")
	}

	// Check if already configured
	_, err := opts.store.Get(keyring.ServiceName, keyring.KeyPassword)
	alreadyConfigured := err == nil

	if alreadyConfigured {
		return runReconfigureMenu(cmd, opts)
	}

	return runInitialSetup(cmd, opts, account)
}

// runReconfigureMenu shows the reconfigure menu when already configured.
func runReconfigureMenu(cmd *cobra.Command, opts configureOptions) error {
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "CLI is already configured. What would you like to do?")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for i, opt := range reconfigureMenuOptions {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, opt)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	_, _ = fmt.Fprint(cmd.OutOrStdout(), "Select option: ")

	choice, err := opts.prompt.SelectOption(reconfigureMenuOptions)
	if err != nil {
		return fmt.Errorf("failed to read selection: %w", err)
	}

	switch choice {
	case 0: // Select different default account
		return runSelectAccount(cmd, opts)
	case 1: // Enter new credentials
		return runInitialSetup(cmd, opts, "")
	case 2: // View current configuration
		return runViewConfiguration(cmd, opts)
	case 3: // Clear stored credentials
		return runClearCredentials(cmd, opts)
	default:
		return fmt.Errorf("invalid selection")
	}
}

// runInitialSetup handles credential entry and validation.
func runInitialSetup(cmd *cobra.Command, opts configureOptions, account string) error {
	username, err := opts.prompt.ReadLine("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	password, err := opts.passwordReader.ReadPassword()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout()) // Print newline after hidden input

	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	// Validate credentials by logging in
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := api.Login(ctx, opts.baseURL, username, password)
	if err != nil {
		return fmt.Errorf("failed to validate credentials: %w", err)
	}

	// Store password in keyring
	if err := opts.store.Set(keyring.ServiceName, keyring.KeyPassword, password); err != nil {
		return fmt.Errorf("failed to store password in keyring: %w", err)
	}
	// Cache the session token too; losing it just means a re-login later
	if err := opts.store.Set(keyring.ServiceName, keyring.KeySessionToken, token); err != nil {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Note: Could not cache session token: %v\n", err)
	}

	// Load existing config or create new one
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	cfg.Username = username

	// Update config with provided values from flag
	if account != "" {
		cfg.Account = account
	} else {
		// Offer account selection if no account was provided via flag
		selected, err := promptAccountSelection(cmd, opts, token)
		if err != nil {
			// Non-fatal: just skip account selection
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Note: Could not fetch accounts: %v\n", err)
		} else if selected != "" {
			cfg.Account = selected
		}
	}

	// Save config
	if err := config.Save(opts.configPath, cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved successfully!")
	return nil
}

// promptAccountSelection fetches accounts and prompts user to select one.
func promptAccountSelection(cmd *cobra.Command, opts configureOptions, sessionToken string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := api.NewClient(opts.baseURL, sessionToken)
	accounts, err := client.Accounts(ctx)
	if err != nil {
		return "", err
	}

	if len(accounts) == 0 {
		return "", nil
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Select a default account:")

	options := make([]string, 0, len(accounts)+1)
	for i, acc := range accounts {
		optionText := fmt.Sprintf("%s (%s)", acc.Number, acc.Type)
		options = append(options, optionText)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, optionText)
	}
	options = append(options, "Skip")
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %d. Skip\n", len(accounts)+1)
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	_, _ = fmt.Fprint(cmd.OutOrStdout(), "Select account: ")

	choice, err := opts.prompt.SelectOption(options)
	if err != nil {
		return "", err
	}

	// If "Skip" was selected
	if choice >= len(accounts) {
		return "", nil
	}

	return accounts[choice].Number, nil
}

// runSelectAccount handles selecting a different default account.
func runSelectAccount(cmd *cobra.Command, opts configureOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	token, err := api.GetSessionToken(opts.store, opts.baseURL, cfg.Username, false)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	selected, err := promptAccountSelection(cmd, opts, token)
	if err != nil {
		return fmt.Errorf("failed to select account: %w", err)
	}

	if selected == "" {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No account selected.")
		return nil
	}

	cfg.Account = selected

	if err := config.Save(opts.configPath, cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Default account set to: %s\n", selected)
	return nil
}

// runViewConfiguration displays the current configuration.
func runViewConfiguration(cmd *cobra.Command, opts configureOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Current Configuration:")
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "----------------------")

	if cfg.Username != "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Username: %s\n", cfg.Username)
	} else {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Username: Not set")
	}

	// Check if a password is stored
	_, err = opts.store.Get(keyring.ServiceName, keyring.KeyPassword)
	if err == nil {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Password: Configured")
	} else {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Password: Not configured")
	}

	if cfg.Account != "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Default account: %s\n", cfg.Account)
	} else {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Default account: Not set")
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API base URL: %s\n", cfg.APIBaseURL)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Streamer URL: %s\n", cfg.StreamerURL)

	return nil
}

// runClearCredentials removes the stored password and session token.
func runClearCredentials(cmd *cobra.Command, opts configureOptions) error {
	if err := opts.store.Delete(keyring.ServiceName, keyring.KeyPassword); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	// A missing cached token is fine
	_ = opts.store.Delete(keyring.ServiceName, keyring.KeySessionToken)

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Credentials cleared successfully.")
	return nil
}

func init() {
	// Create configure command with production dependencies
	configureCmd := newConfigureCmd(configureOptions{
		configPath:     config.ConfigPath(),
		baseURL:        config.DefaultAPIBaseURL,
		store:          keyring.NewEnvStore(keyring.NewSystemStore()),
		passwordReader: newTerminalReader(int(os.Stdin.Fd())),
		prompt:         newTerminalPrompter(os.Stdin, os.Stdout),
	})
	rootCmd.AddCommand(configureCmd)
}
