package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var stopControlAddr string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Request a graceful stop of a running imagecd instance",
	RunE:  runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopControlAddr, "control-addr", "localhost:9090", "control address of the running imagecd instance")
}

func runStop(cmd *cobra.Command, args []string) error {
	resp, err := http.Post(fmt.Sprintf("http://%s/stop", stopControlAddr), "application/octet-stream", nil)
	if err != nil {
		return fmt.Errorf("reach %s: %w", stopControlAddr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("stop request rejected: %s", resp.Status)
	}
	fmt.Println("stop requested")
	return nil
}
