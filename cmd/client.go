package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/jsonrpc"
)

var (
	serverURLFlag string
	messageFlag   string
	taskIDFlag    string

	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "A2A client operations",
		Long:  `Run client operations against an A2A agent's JSON-RPC endpoint`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "Send a message via message/send",
		RunE:  runClientSend,
	}

	getCmd = &cobra.Command{
		Use:   "get",
		Short: "Fetch a task via tasks/get",
		RunE:  runClientGet,
	}

	cancelCmd = &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a task via tasks/cancel",
		RunE:  runClientCancel,
	}

	streamCmd = &cobra.Command{
		Use:   "stream",
		Short: "Send a message via message/stream and print each event",
		RunE:  runClientStream,
	}
)

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(sendCmd, getCmd, cancelCmd, streamCmd)

	clientCmd.PersistentFlags().StringVarP(&serverURLFlag, "url", "u", "http://localhost:3210", "agent base URL")

	sendCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "message text to send")
	streamCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "message text to send")

	getCmd.Flags().StringVarP(&taskIDFlag, "task", "t", "", "task id")
	cancelCmd.Flags().StringVarP(&taskIDFlag, "task", "t", "", "task id")
}

func rpcCall(serverURL string, method string, params any) (*jsonrpc.Response, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	req := struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      int             `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}{JSONRPC: "2.0", ID: 1, Method: method, Params: paramsJSON}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := http.Post(serverURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp jsonrpc.Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &rpcResp, nil
}

func runClientSend(cmd *cobra.Command, args []string) error {
	if messageFlag == "" {
		return fmt.Errorf("--message is required")
	}

	params := a2a.MessageSendParams{
		Message: a2a.Message{
			MessageID: uuid.NewString(),
			Role:      a2a.RoleUser,
			Parts:     []a2a.Part{a2a.NewTextPart(messageFlag)},
		},
	}

	resp, err := rpcCall(serverURLFlag, "message/send", params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		log.Error("message/send failed", "code", resp.Error.Code, "message", resp.Error.Message)
		return fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	printResult(resp.Result)
	return nil
}

func runClientGet(cmd *cobra.Command, args []string) error {
	if taskIDFlag == "" {
		return fmt.Errorf("--task is required")
	}

	resp, err := rpcCall(serverURLFlag, "tasks/get", a2a.TaskQueryParams{ID: taskIDFlag})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		log.Error("tasks/get failed", "code", resp.Error.Code, "message", resp.Error.Message)
		return fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	printResult(resp.Result)
	return nil
}

func runClientCancel(cmd *cobra.Command, args []string) error {
	if taskIDFlag == "" {
		return fmt.Errorf("--task is required")
	}

	resp, err := rpcCall(serverURLFlag, "tasks/cancel", a2a.TaskIDParams{ID: taskIDFlag})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		log.Error("tasks/cancel failed", "code", resp.Error.Code, "message", resp.Error.Message)
		return fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	printResult(resp.Result)
	return nil
}

// runClientStream drives message/stream over raw SSE: it issues the POST by
// hand (rather than through rpcCall, which expects a single JSON body) and
// prints each `data:` record as it arrives.
func runClientStream(cmd *cobra.Command, args []string) error {
	if messageFlag == "" {
		return fmt.Errorf("--message is required")
	}

	params := a2a.MessageSendParams{
		Message: a2a.Message{
			MessageID: uuid.NewString(),
			Role:      a2a.RoleUser,
			Parts:     []a2a.Part{a2a.NewTextPart(messageFlag)},
		},
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return err
	}

	reqBody, err := json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      int             `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}{JSONRPC: "2.0", ID: 1, Method: "message/stream", Params: paramsJSON})
	if err != nil {
		return err
	}

	resp, err := http.Post(serverURLFlag, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("post message/stream: %w", err)
	}
	defer resp.Body.Close()

	return scanSSE(resp.Body)
}

// scanSSE reads an SSE body line by line and prints each `data:` record as
// it arrives, skipping the periodic `event: ping` heartbeats (§6).
func scanSSE(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			event = name
			continue
		}
		if line == "" {
			event = ""
			continue
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok && event != "ping" {
			fmt.Println(data)
		}
	}
	return scanner.Err()
}

func printResult(result any) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Println(result)
		return
	}
	fmt.Println(string(data))
}
