package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"leadgen-engine/internal/secrets"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Store credentials in the OS keychain",
}

var secretGatewayCmd = &cobra.Command{
	Use:   "set-gateway <client-id>",
	Short: "Store the gateway client secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := readSecret("client secret: ")
		if err != nil {
			return err
		}
		if err := secrets.SetGatewaySecret(args[0], secret); err != nil {
			return err
		}
		fmt.Println("stored")
		return nil
	},
}

var secretIMAPCmd = &cobra.Command{
	Use:   "set-imap <username> <host>",
	Short: "Store the alerts mailbox password",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readSecret("password: ")
		if err != nil {
			return err
		}
		if err := secrets.SetIMAPPassword(args[0], args[1], pw); err != nil {
			return err
		}
		fmt.Println("stored")
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretGatewayCmd, secretIMAPCmd)
	rootCmd.AddCommand(secretCmd)
}

func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
