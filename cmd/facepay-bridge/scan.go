package main

import (
	"encoding/json"

	"github.com/parsec/wechat-face-payment/facepay"
	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one scan-code payment against the simulated SDK and print the scan event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, cfg, err := setup(cmd)
			if err != nil {
				return err
			}

			sim := cfg.Simulator.NewSimulator()
			seq := facepay.NewSequencer(sim, nil, logger, cfg)

			info, err := seq.RunScanPay(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
		},
	}
}
