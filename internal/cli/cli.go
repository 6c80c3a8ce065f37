package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

type RemoteServerConf struct {
	Host string
	Port int
}

var ServerConfig RemoteServerConf

var rootCmd = &cobra.Command{
	Use:   "dispatch-cli",
	Short: "CLI utility for the gpu-dispatch worker",
	Long:  `CLI utility to register functions and query dispatch decisions on a gpu-dispatch worker.`,
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Asks the worker for a dispatch decision",
	Run:   dispatchFunction,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Registers a function",
	Run:   createFunction,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the worker status",
	Run:   getStatus,
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Prints the last dispatch decision recorded for a function",
	Run:   getContext,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists registered functions",
	Run:   listFunctions,
}

var funcName, namespace, runtime, handler, tid string
var memory int64
var cpuDemand, gpuDemand float64

func Init() {
	rootCmd.PersistentFlags().StringVarP(&ServerConfig.Host, "host", "H", ServerConfig.Host, "remote worker host")
	rootCmd.PersistentFlags().IntVarP(&ServerConfig.Port, "port", "P", ServerConfig.Port, "remote worker port")

	rootCmd.AddCommand(dispatchCmd)
	dispatchCmd.Flags().StringVarP(&funcName, "function", "f", "", "name of the function")
	dispatchCmd.Flags().StringVarP(&tid, "tid", "t", "", "transaction id (optional)")

	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&funcName, "function", "f", "", "name of the function")
	createCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace of the function")
	createCmd.Flags().StringVarP(&runtime, "runtime", "r", "python310", "runtime for the function")
	createCmd.Flags().StringVarP(&handler, "handler", "", "", "function handler")
	createCmd.Flags().Int64VarP(&memory, "memory", "m", 128, "max memory in MB for the function")
	createCmd.Flags().Float64VarP(&cpuDemand, "cpu", "c", 0.0, "estimated CPU demand (e.g., 1.0 = 1 core)")
	createCmd.Flags().Float64VarP(&gpuDemand, "gpu", "g", 0.0, "estimated GPU demand (fraction of a GPU)")

	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().StringVarP(&funcName, "function", "f", "", "name of the function")

	rootCmd.AddCommand(listCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func serverUrl(path string) string {
	return fmt.Sprintf("http://%s:%d%s", ServerConfig.Host, ServerConfig.Port, path)
}

func printResponse(resp *http.Response, err error) {
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(2)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	fmt.Println(string(body))
}

func dispatchFunction(cmd *cobra.Command, args []string) {
	if funcName == "" {
		fmt.Println("A function name is required (-f)")
		os.Exit(1)
	}
	payload, _ := json.Marshal(map[string]string{"tid": tid})
	resp, err := http.Post(serverUrl("/dispatch/"+funcName), "application/json", bytes.NewBuffer(payload))
	printResponse(resp, err)
}

func createFunction(cmd *cobra.Command, args []string) {
	if funcName == "" {
		fmt.Println("A function name is required (-f)")
		os.Exit(1)
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"name":      funcName,
		"namespace": namespace,
		"runtime":   runtime,
		"memoryMB":  memory,
		"cpuDemand": cpuDemand,
		"gpuDemand": gpuDemand,
		"handler":   handler,
	})
	resp, err := http.Post(serverUrl("/create"), "application/json", bytes.NewBuffer(payload))
	printResponse(resp, err)
}

func getStatus(cmd *cobra.Command, args []string) {
	resp, err := http.Get(serverUrl("/status"))
	printResponse(resp, err)
}

func getContext(cmd *cobra.Command, args []string) {
	if funcName == "" {
		fmt.Println("A function name is required (-f)")
		os.Exit(1)
	}
	resp, err := http.Get(serverUrl("/context/" + funcName))
	printResponse(resp, err)
}

func listFunctions(cmd *cobra.Command, args []string) {
	resp, err := http.Get(serverUrl("/function"))
	printResponse(resp, err)
}
