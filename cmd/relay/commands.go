package main

import (
	"fmt"

	"github.com/aanthord/mtls-relay/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type roleDef struct {
	role  string
	short string

	rpcServer, rpcClient, ingress bool
	run                           func(p *process) error
}

var roles = []roleDef{
	{
		role:      config.RoleIngress,
		short:     "Accept messages over HTTP and relay them to the messenger",
		rpcClient: true,
		ingress:   true,
		run:       runIngress,
	},
	{
		role:      config.RoleMessenger,
		short:     "Store relayed messages and serve them over RPC",
		rpcServer: true,
		run:       runMessenger,
	},
	{
		role:      config.RoleGateway,
		short:     "Accept documents over HTTP and relay them to the forwarder",
		rpcClient: true,
		ingress:   true,
		run:       runGateway,
	},
	{
		role:      config.RoleForwarder,
		short:     "Relay documents from the gateway to the display",
		rpcServer: true,
		rpcClient: true,
		run:       runForwarder,
	},
	{
		role:      config.RoleDisplay,
		short:     "Store relayed documents and serve them to polling viewers",
		rpcServer: true,
		run:       runDisplay,
	},
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Mutual-TLS JSON relay",
		SilenceUsage: true,
	}
	for _, r := range roles {
		root.AddCommand(newRoleCmd(r))
	}
	return root
}

func newRoleCmd(r roleDef) *cobra.Command {
	v := viper.New()
	config.SetDefaults(v, r.role)

	cmd := &cobra.Command{
		Use:   r.role,
		Short: r.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			cfg, err := config.Load(v, r.role)
			if err != nil {
				return err
			}
			p, err := newProcess(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer p.close()
			return r.run(p)
		},
	}
	addFlags(cmd.Flags(), v, r)
	return cmd
}

// addFlags registers the flags a role understands, defaulting to what the
// environment and role defaults already resolve to.
func addFlags(fs *pflag.FlagSet, v *viper.Viper, r roleDef) {
	fs.String("log-level", v.GetString("log-level"), "log level (debug, info, warn, error)")
	fs.String("certs-dir", v.GetString("certs-dir"), "directory holding ca.pem, <cert-name>.pem and <cert-name>-key.pem")
	fs.String("cert-name", v.GetString("cert-name"), "name of this process's certificate pair")
	fs.String("http-addr", v.GetString("http-addr"), "HTTP listen address")
	fs.StringSlice("cors-origins", v.GetStringSlice("cors-origins"), "allowed CORS origins")
	fs.Bool("tracing", v.GetBool("tracing"), "report spans to the Jaeger agent")

	if r.rpcServer {
		fs.String("rpc-addr", v.GetString("rpc-addr"), "mutual-TLS RPC listen address")
		fs.Duration("idle-timeout", v.GetDuration("idle-timeout"), "close RPC connections idle for this long")
	}
	if r.rpcClient {
		fs.String("downstream", v.GetString("downstream"), "host:port of the next hop")
		fs.String("downstream-server-name", v.GetString("downstream-server-name"), "name expected in the next hop's certificate (default: downstream host)")
		fs.Duration("rpc-timeout", v.GetDuration("rpc-timeout"), "deadline for each downstream call")
		fs.Duration("dial-timeout", v.GetDuration("dial-timeout"), "deadline for connecting to the next hop")
		fs.Int("max-pool", v.GetInt("max-pool"), "idle connections kept to the next hop")
		fs.Int("connect-retries", v.GetInt("connect-retries"), "startup connection attempts after the first")
		fs.Duration("connect-interval", v.GetDuration("connect-interval"), "pause between startup connection attempts")
	}
	if r.ingress {
		fs.Int("ingress-retries", v.GetInt("ingress-retries"), "retries of a relay call that found the next hop unavailable")
	}
}
