package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var projectName string
	var dsn string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new interestsync project config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			if err := runInit(configPath, projectName, dsn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", configPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().StringVar(&dsn, "dsn", "sqlite://./interestsync.db", "Database DSN (sqlite:// or postgres://)")
	return cmd
}

const configTemplate = `project: %s
version: 1

database:
  dsn: %s

collections:
  events: likes
  proposals: propuestas
  owners: usuarios
  acceptances: matches
  interests: intereses

# Candidate field names, tried in order. The first one present wins.
fields:
  event_subject: [postulanteId]
  event_object: [propuestaId]
  event_counterparty: [idEmpleador, empleadorId]
  event_timestamp: [timestamp]
  proposal_title: [titulo]
  proposal_owner: [empleadorId, idEmpleador]
  owner_name: [nombre]
  acceptance_subject: [idPostulante]
  acceptance_object: [idPropuesta]

placeholders:
  title: Propuesta
  display_name: Empresa

# Set redis_addr to serialise reconcile runs across hosts.
lock:
  redis_addr: ""
  ttl: 10m

normalize:
  batch_size: 500
  employer_type: empleador
`

func runInit(path, projectName, dsn string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	contents := fmt.Sprintf(configTemplate, projectName, dsn)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
