/*
Package cmd implements the command-line interface for the a2a-core agent
runtime: a serve command that brings up the A2A request surface over HTTP,
and a client command that drives it.
*/
package cmd

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Embed a mini filesystem into the binary to hold the default config file.
// This will be written to the home directory of the user running the
// service, which allows a developer to easily override it.
//
//go:embed cfg/*
var embedded embed.FS

var (
	projectName = "a2a-core"
	cfgFile     string

	rootCmd = &cobra.Command{
		Use:   "a2a-core",
		Short: "A stateless Agent-to-Agent (A2A) task execution substrate",
		Long:  longRoot,
	}
)

// Execute is the main entry point for the a2a-core CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yml",
		"config file (default is $HOME/."+projectName+"/config.yml)",
	)
}

// initConfig writes the default config file to the user's home directory if
// it doesn't exist, then reads it via viper.
func initConfig() {
	if err := writeConfig(); err != nil {
		log.Fatal(err)
	}

	viper.SetConfigType("yml")
	home, _ := os.UserHomeDir()
	viper.SetConfigFile(home + "/." + projectName + "/" + cfgFile)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func writeConfig() error {
	home, _ := os.UserHomeDir()
	configDir := home + "/." + projectName

	if !checkFileExists(configDir) {
		if err := os.MkdirAll(configDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	fullPath := configDir + "/" + cfgFile
	if checkFileExists(fullPath) {
		return nil
	}

	fh, err := embedded.Open("cfg/" + cfgFile)
	if err != nil {
		return fmt.Errorf("failed to open embedded config file: %w", err)
	}
	defer fh.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, fh); err != nil {
		return fmt.Errorf("failed to read embedded config file: %w", err)
	}

	if err := os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Println("wrote config file to", fullPath)
	return nil
}

func checkFileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !errors.Is(err, fs.ErrNotExist)
}

var longRoot = `
a2a-core implements the Agent-to-Agent (A2A) protocol's stateless task
execution substrate: one JSON-RPC 2.0 endpoint over HTTP, an Event Bus, a
Task Store, and the Executor/Result Manager pipeline that drives a
caller-supplied handler to a terminal Task or Message.
`
