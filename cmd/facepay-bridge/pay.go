package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/parsec/wechat-face-payment/facepay"
	"github.com/parsec/wechat-face-payment/internal/wxauth"
	"github.com/spf13/cobra"
)

func payCmd() *cobra.Command {
	args := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Run one face payment against the simulated SDK and print its outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, cfg, err := setup(cmd)
			if err != nil {
				return err
			}

			sim := cfg.Simulator.NewSimulator()
			authClient := wxauth.New(cfg.AuthInfoURL, cfg.UserInfoURL, &http.Client{Timeout: cfg.HTTPTimeout})
			seq := facepay.NewSequencer(sim, authClient, logger, cfg)
			bridge := facepay.NewBridge(sim, seq, authClient, nil, logger, cfg)
			defer bridge.Close()

			params := make(map[string]any, len(args))
			for k, v := range args {
				if *v != "" {
					params[k] = *v
				}
			}

			outcomes, unsubscribe := bridge.Subscribe()
			defer unsubscribe()

			ack, err := bridge.InitFacePay(params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), ack)

			select {
			case outcome := <-outcomes:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(outcome)
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}

	for _, name := range []string{
		facepay.ArgAppID, facepay.ArgMchID, facepay.ArgStoreID, facepay.ArgTelPhone,
		facepay.ArgOpenID, facepay.ArgOutTradeNo, facepay.ArgTotalFee, facepay.ArgFaceAuthType,
		facepay.ArgSubAppID, facepay.ArgSubMchID,
	} {
		args[name] = cmd.Flags().String(name, "", name+" argument of initFacePay")
	}
	return cmd
}
