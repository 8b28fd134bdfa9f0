package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"leadgen-engine/internal/gateway"
	"leadgen-engine/internal/secrets"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the gateway credit balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		secret, err := secrets.GatewaySecret(cfg.Gateway.ClientID)
		if err != nil {
			return err
		}
		gw := gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.ClientID, secret, cfg.Gateway.RequestsPerMin)
		bal, err := gw.Balance(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%.2f\n", bal)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
