package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fstash/internal/app"
	"fstash/internal/config"
	"fstash/internal/database"
	"fstash/internal/database/migrations"
	"fstash/internal/model"
	"fstash/internal/stash"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a StashApp. The caller must defer
// a.Close(). command tags the session's log lines.
func newApp(cmd *cobra.Command, command string) (*app.StashApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewStashApp(cmd.Context(), cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// resolveActor authenticates the --as user. Returns nil (anonymous) when
// --as is not given. The password comes from FSTASH_PASSWORD or an
// interactive prompt.
func resolveActor(a *app.StashApp, cmd *cobra.Command) (*model.User, error) {
	name, _ := cmd.Flags().GetString("as")
	if name == "" {
		return nil, nil
	}

	password, err := obtainPassword(fmt.Sprintf("Password for %s: ", name))
	if err != nil {
		return nil, err
	}
	return a.Authenticate(name, password)
}

// obtainPassword reads FSTASH_PASSWORD or prompts on the terminal.
func obtainPassword(prompt string) (string, error) {
	if p := os.Getenv("FSTASH_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}

// promptNewPassword prompts twice and insists on a match.
func promptNewPassword() (string, error) {
	first, err := obtainPassword("New password: ")
	if err != nil {
		return "", err
	}
	if os.Getenv("FSTASH_PASSWORD") != "" {
		return first, nil
	}
	second, err := obtainPassword("Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	return first, nil
}

func printFile(f *stash.File) {
	kind := "file"
	switch {
	case f.IsDir:
		kind = "dir"
	case f.Attributes.Symlink:
		kind = "link"
	}
	fmt.Printf("%-4s  %8s  %s  %s\n",
		kind,
		model.FormatSize(f.Attributes.Size),
		f.Attributes.Modified.Format("2006-01-02 15:04:05"),
		f.Name,
	)
}

var rootCmd = &cobra.Command{
	Use:   "fstash",
	Short: "Multi-user sandboxed file storage",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Data Dir: %s\n", cfg.DataDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Data Dir:  %s\n", cfg.DataDir)
		fmt.Printf("Users Dir: %s\n", cfg.UsersDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:     %s (%s)\n", v.Name, v.Type)
		}
		fmt.Printf("Encryption enabled: %v\n", cfg.Encryption.Enabled)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the account database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return err
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		store, err := database.NewStoreFromConfig(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		if err := migrations.MigrateUp(store.DB()); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		fmt.Println("Database schema is up to date.")
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check schema status",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return err
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		store, err := database.NewStoreFromConfig(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		if err := migrations.CheckSchemaStatus(store.DB()); err != nil {
			return err
		}
		fmt.Println("Database schema is up to date.")
		return nil
	},
}

// bootstrap command
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap NAME",
	Short: "Migrate the schema and create the first owner account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return err
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		// Fresh installs have no schema yet; bring it up before the app
		// layer runs its schema check.
		store, err := database.NewStoreFromConfig(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		if err := migrations.MigrateUp(store.DB()); err != nil {
			store.Close()
			return fmt.Errorf("migrating: %w", err)
		}
		store.Close()

		a, err := newApp(cmd, "bootstrap")
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := promptNewPassword()
		if err != nil {
			return err
		}

		u, err := a.Bootstrap(args[0], password)
		if err != nil {
			return err
		}
		fmt.Printf("Created owner account %s (id %d)\n", u.Name, u.ID)
		return nil
	},
}

// encryption command
var encryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Manage export encryption keys",
}

var encryptionInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the export encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "encryption init")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := promptNewPassword()
		if err != nil {
			return err
		}

		if err := a.SetupEncryption(passphrase); err != nil {
			return err
		}
		fmt.Println("Encryption keys generated.")
		return nil
	},
}

// user commands
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rank, _ := cmd.Flags().GetString("rank")

		a, err := newApp(cmd, "user add")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		password, err := promptNewPassword()
		if err != nil {
			return err
		}

		res, err := a.Do(cmd.Context(), actor, "CreateUser", args[0], "", "", nil, map[string]string{
			"name":     args[0],
			"password": password,
			"rank":     rank,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s account %s (id %d)\n", res.User.Rank, res.User.Name, res.User.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "user list")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		users, err := a.ListUsers(actor)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%4d  %-6s  %s\n", u.ID, u.Rank, u.Name)
		}
		return nil
	},
}

var userRenameCmd = &cobra.Command{
	Use:   "rename NAME NEWNAME",
	Short: "Rename an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "user rename")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		options := map[string]string{"name": args[1]}
		if actor != nil && actor.Name == args[0] {
			current, err := obtainPassword("Current password: ")
			if err != nil {
				return err
			}
			options["password"] = current
		}

		if _, err := a.Do(cmd.Context(), actor, "RenameUser", args[0], "", "", nil, options); err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %s\n", args[0], args[1])
		return nil
	},
}

var userRankCmd = &cobra.Command{
	Use:   "rank NAME RANK",
	Short: "Change an account's rank",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "user rank")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		if _, err := a.Do(cmd.Context(), actor, "ChangeRank", args[0], "", "", nil, map[string]string{
			"rank": args[1],
		}); err != nil {
			return err
		}
		fmt.Printf("Changed %s to rank %s\n", args[0], args[1])
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd NAME",
	Short: "Change an account's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "user passwd")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		options := map[string]string{}
		if actor != nil && actor.Name == args[0] {
			current, err := obtainPassword("Current password: ")
			if err != nil {
				return err
			}
			options["password"] = current
		}

		newPassword, err := promptNewPassword()
		if err != nil {
			return err
		}
		options["new-password"] = newPassword
		options["confirm-password"] = newPassword

		if _, err := a.Do(cmd.Context(), actor, "ChangePassword", args[0], "", "", nil, options); err != nil {
			return err
		}
		fmt.Printf("Password changed for %s\n", args[0])
		return nil
	},
}

var userRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Delete an account and its storage tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			fmt.Fprintf(os.Stderr, "Type the account name to confirm deletion: ")
			var confirm string
			fmt.Fscanln(os.Stdin, &confirm)
			if confirm != args[0] {
				return fmt.Errorf("confirmation does not match account name")
			}
		}

		a, err := newApp(cmd, "user rm")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		options := map[string]string{}
		if actor != nil && actor.Name == args[0] {
			current, err := obtainPassword("Current password: ")
			if err != nil {
				return err
			}
			options["password"] = current
		}

		if _, err := a.Do(cmd.Context(), actor, "DeleteUser", args[0], "", "", nil, options); err != nil {
			return err
		}
		fmt.Printf("Deleted account %s\n", args[0])
		return nil
	},
}

// storage commands
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Browse and mutate storage trees",
}

var storageLsCmd = &cobra.Command{
	Use:   "ls OWNER VISIBILITY [PATH]",
	Short: "List a directory or show a file",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "storage ls")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		path := ""
		if len(args) > 2 {
			path = args[2]
		}

		res, err := a.Do(cmd.Context(), actor, "Browse", args[0], args[1], path, nil, nil)
		if err != nil {
			return err
		}

		if res.File.IsDir {
			for _, entry := range res.Entries {
				printFile(entry)
			}
			return nil
		}
		printFile(res.File)
		return nil
	},
}

var storagePutCmd = &cobra.Command{
	Use:   "put OWNER VISIBILITY PATH [FILE]",
	Short: "Upload a file (reads stdin without FILE)",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "storage put")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		var payload io.Reader = os.Stdin
		if len(args) > 3 {
			f, err := os.Open(args[3])
			if err != nil {
				return fmt.Errorf("opening source file: %w", err)
			}
			defer f.Close()
			payload = f
		}

		res, err := a.Do(cmd.Context(), actor, "Upload", args[0], args[1], args[2], payload, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s (%s)\n", res.File.RelPath, model.FormatSize(res.File.Attributes.Size))
		return nil
	},
}

var storageMkdirCmd = &cobra.Command{
	Use:   "mkdir OWNER VISIBILITY PATH",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "storage mkdir")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		res, err := a.Do(cmd.Context(), actor, "Mkdir", args[0], args[1], args[2], nil, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Created directory %s\n", res.File.RelPath)
		return nil
	},
}

var storageMvCmd = &cobra.Command{
	Use:   "mv OWNER VISIBILITY PATH DEST",
	Short: "Move or rename within the same subtree",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp(cmd, "storage mv")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		res, err := a.Do(cmd.Context(), actor, "Move", args[0], args[1], args[2], nil, map[string]string{
			"to":    args[3],
			"force": strconv.FormatBool(force),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Moved to %s\n", res.File.RelPath)
		return nil
	},
}

var storageToggleCmd = &cobra.Command{
	Use:   "toggle OWNER VISIBILITY PATH [DEST]",
	Short: "Flip a file between public and private",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp(cmd, "storage toggle")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		// Without an explicit destination the file keeps its relative
		// path under the opposite home.
		dest := args[2]
		if len(args) > 3 {
			dest = args[3]
		}

		res, err := a.Do(cmd.Context(), actor, "Toggle", args[0], args[1], args[2], nil, map[string]string{
			"to":    dest,
			"force": strconv.FormatBool(force),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Now %s: %s\n", res.File.Visibility, res.File.RelPath)
		return nil
	},
}

var storageRmCmd = &cobra.Command{
	Use:   "rm OWNER VISIBILITY PATH",
	Short: "Remove a file or directory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")

		a, err := newApp(cmd, "storage rm")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		if _, err := a.Do(cmd.Context(), actor, "Remove", args[0], args[1], args[2], nil, map[string]string{
			"recursive": strconv.FormatBool(recursive),
		}); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[2])
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export NAME",
	Short: "Snapshot an account's tree into the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "export")
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(a, cmd)
		if err != nil {
			return err
		}

		res, err := a.Do(cmd.Context(), actor, "ExportUser", args[0], "", "", nil, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %s as %s\n", args[0], res.Key)
		return nil
	},
}

// vault command
var vaultCheckCmd = &cobra.Command{
	Use:   "vault-check",
	Short: "Verify the configured vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "vault-check")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateSetup(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Vault is reachable.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("as", "", "Act as this account (prompts for password)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	rootCmd.AddCommand(dbCmd)

	rootCmd.AddCommand(bootstrapCmd)

	encryptionCmd.AddCommand(encryptionInitCmd)
	rootCmd.AddCommand(encryptionCmd)

	userCmd.AddCommand(userAddCmd)
	userAddCmd.Flags().String("rank", "user", "Rank of the new account (user or admin)")
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userRenameCmd)
	userCmd.AddCommand(userRankCmd)
	userCmd.AddCommand(userPasswdCmd)
	userRmCmd.Flags().BoolP("yes", "y", false, "Skip the account name confirmation")
	userCmd.AddCommand(userRmCmd)
	rootCmd.AddCommand(userCmd)

	storageCmd.AddCommand(storageLsCmd)
	storageCmd.AddCommand(storagePutCmd)
	storageCmd.AddCommand(storageMkdirCmd)
	storageMvCmd.Flags().BoolP("force", "f", false, "Replace an existing destination file")
	storageCmd.AddCommand(storageMvCmd)
	storageToggleCmd.Flags().BoolP("force", "f", false, "Replace an existing destination file")
	storageCmd.AddCommand(storageToggleCmd)
	storageRmCmd.Flags().BoolP("recursive", "r", false, "Remove populated directories")
	storageCmd.AddCommand(storageRmCmd)
	rootCmd.AddCommand(storageCmd)

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(vaultCheckCmd)
}
