package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/server"
)

var hashPasswordSave bool

func init() {
	hashPasswordCmd.Flags().BoolVar(&hashPasswordSave, "save", false, "Store the hash as server.admin_password_hash in the library config")
	rootCmd.AddCommand(hashPasswordCmd)
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash an admin password read from stdin",
	Long: `Read a password from the first line of stdin and print its bcrypt hash.

Examples:
  echo 's3cret' | pubs hash-password
  pubs hash-password --save < password.txt`,
	Args: cobra.NoArgs,
	RunE: runHashPassword,
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	hash, err := server.HashPassword(password)
	if err != nil {
		exitWithError(ExitError, "hashing password: %v", err)
	}

	if hashPasswordSave {
		root := mustFindLibrary()
		cfg := mustLoadConfig(root)
		cfg.Server.AdminPassword = hash
		if err := cfg.Save(root); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}

	if humanOutput {
		fmt.Println(hash)
	} else {
		outputJSON(map[string]any{"hash": hash, "saved": hashPasswordSave})
	}
	return nil
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("empty password")
	}
	return password, nil
}
