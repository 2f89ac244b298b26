package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/client"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
)

var (
	baseURL = "http://localhost:8080"
	verbose bool
	logger  = zap.NewNop()
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		logger.Debug("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vmctl",
		Short:         "Client for the VM provisioning facade",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !verbose {
				return nil
			}
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&baseURL, "url", envOr("VMCTL_URL", baseURL), "facade base URL")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests")

	cmd.AddCommand(healthCmd(), createCmd(), getCmd(), listCmd(), updateCmd(), actionCmd())
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the facade is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			if err := newClient().Health(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var (
		provider    string
		name        string
		params      []string
		requestedBy string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a VM",
		Example: "  vmctl create --provider aws --name web1 " +
			"-p instance_type=t2.micro -p region=us-east-1 -p vpc=vpc-1 -p ami=ami-1",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := models.CreateRequest{
				Provider:    models.Provider(provider),
				Name:        name,
				Params:      models.Params{},
				RequestedBy: requestedBy,
			}
			for _, kv := range params {
				k, v, err := client.ParseParam(kv)
				if err != nil {
					return err
				}
				req.Params[k] = v
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			vm, err := newClient().Create(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, vm)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "aws, azure, gcp or onpremise")
	cmd.Flags().StringVar(&name, "name", "", "VM name")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "provider parameter as key=value, or key:=N to send an integer (repeatable)")
	cmd.Flags().StringVar(&requestedBy, "requested-by", "", "requester recorded in events")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			vm, err := newClient().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, vm)
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List VMs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			vms, err := newClient().List(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, models.VMListResponse{Items: vms})
		},
	}
}

func updateCmd() *cobra.Command {
	var (
		cpu, ram, disk                  int64
		instanceType, size, machineType string
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Patch a VM's specs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var changes models.UpdateRequest
			flags := cmd.Flags()
			if flags.Changed("cpu") {
				changes.CPU = &cpu
			}
			if flags.Changed("ram-gb") {
				changes.RAMGB = &ram
			}
			if flags.Changed("disk-gb") {
				changes.DiskGB = &disk
			}
			if flags.Changed("instance-type") {
				changes.InstanceType = &instanceType
			}
			if flags.Changed("size") {
				changes.Size = &size
			}
			if flags.Changed("machine-type") {
				changes.MachineType = &machineType
			}
			if changes.IsEmpty() {
				return fmt.Errorf("no changes given")
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			vm, err := newClient().Update(ctx, args[0], changes)
			if err != nil {
				return err
			}
			return printJSON(cmd, vm)
		},
	}
	f := cmd.Flags()
	f.Int64Var(&cpu, "cpu", 0, "vCPU count")
	f.Int64Var(&ram, "ram-gb", 0, "memory in GB")
	f.Int64Var(&disk, "disk-gb", 0, "disk in GB")
	f.StringVar(&instanceType, "instance-type", "", "AWS instance type")
	f.StringVar(&size, "size", "", "Azure VM size")
	f.StringVar(&machineType, "machine-type", "", "GCP machine type")
	return cmd
}

func actionCmd() *cobra.Command {
	var requestedBy string
	cmd := &cobra.Command{
		Use:       "action ID start|stop|restart",
		Short:     "Apply a lifecycle action",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(models.ActionStart), string(models.ActionStop), string(models.ActionRestart)},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			vm, err := newClient().Action(ctx, args[0], models.ActionRequest{
				Action:      models.Action(args[1]),
				RequestedBy: requestedBy,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, vm)
		},
	}
	cmd.Flags().StringVar(&requestedBy, "requested-by", "", "requester recorded in events")
	return cmd
}

func newClient() *client.Client {
	logger.Debug("using facade", zap.String("url", baseURL))
	return client.New(baseURL)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 15*time.Second)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
