// trustctl is the operator tool for the trust core: resolve an entity's
// metadata, inspect the configured keystore, and dump the dynamic attribute
// registry.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	eidasmirror "github.com/willp-bl/eidas-mirror-sub004"
	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/extension"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

var (
	configPath string
	noColor    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "trustctl",
	Short: "Inspect and exercise the federation trust core",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <entity-id>",
	Short: "Resolve an entity identifier and print its roles and validity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		rec, err := engine.Resolver().EntityDescriptor(ctx, args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Println("no entity identifier given, nothing to resolve")
			return nil
		}

		color.Green("entity: %s", rec.EntityID)
		if rec.ValidUntil != nil {
			fmt.Printf("valid until: %s\n", rec.ValidUntil.Format(time.RFC3339))
		} else {
			fmt.Println("valid until: unbounded")
		}
		if sp := domain.FirstSPDescriptor(rec.Descriptor); sp != nil {
			fmt.Printf("service provider role: %d key descriptor(s)\n", len(sp.KeyDescriptors))
		}
		if idp := domain.FirstIDPDescriptor(rec.Descriptor); idp != nil {
			fmt.Printf("identity provider role: %d key descriptor(s)\n", len(idp.KeyDescriptors))
		}
		if err := engine.Resolver().CheckSignature(rec.EntityID); err != nil {
			color.Red("descriptor signature: %v", err)
		} else {
			color.Green("descriptor signature: ok")
		}
		return nil
	},
}

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "Show the resolved signing credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		cred := engine.SigningCredential()
		if cred.Certificate == nil {
			return fmt.Errorf("no keystore configured")
		}
		color.Green("subject: %s", cred.Certificate.Subject.String())
		fmt.Printf("issuer:  %s\n", cred.Certificate.Issuer.String())
		fmt.Printf("serial:  %s\n", cred.Certificate.SerialNumber.Text(16))
		fmt.Printf("expires: %s\n", cred.Certificate.NotAfter.Format(time.RFC3339))
		return nil
	},
}

var registryCmd = &cobra.Command{
	Use:   "registry <file>",
	Short: "Dump a dynamic attribute registry resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := extension.NewRegistry(args[0], buildLogger())
		if err := reg.Err(); err != nil {
			return err
		}
		names := reg.FriendlyNames()
		sort.Strings(names)
		for _, name := range names {
			full, _ := reg.FullName(name)
			if t, ok := reg.Type(full); ok {
				fmt.Printf("%s -> %s (%s)\n", name, full, t)
			} else {
				fmt.Printf("%s -> %s\n", name, full)
			}
		}
		color.Green("%d attribute(s)", len(names))
		return nil
	},
}

func buildLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func buildEngine() (*eidasmirror.Engine, error) {
	cfg, err := eidasmirror.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return eidasmirror.New(*cfg, eidasmirror.WithLogger(buildLogger()))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "engine.yaml", "Engine configuration file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.AddCommand(resolveCmd, keystoreCmd, registryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
