package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var stateControlAddr string

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print a running imagecd instance's lifecycle state and progress",
	RunE:  runState,
}

func init() {
	stateCmd.Flags().StringVar(&stateControlAddr, "control-addr", "localhost:9090", "control address of the running imagecd instance")
}

func runState(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(fmt.Sprintf("http://%s/state", stateControlAddr))
	if err != nil {
		return fmt.Errorf("reach %s: %w", stateControlAddr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read state response: %w", err)
	}

	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	encoded, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(encoded))
	return nil
}
