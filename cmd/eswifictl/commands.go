package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/go-eswifi/eswifi"
	"github.com/arloliu/go-eswifi/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	readTimeout time.Duration
	fetchPath   string
	servePort   uint16
	serveBus    bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the eswifictl version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "eswifictl", version)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show module identity and network state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(d *eswifi.Device) error {
			return printInfo(cmd.OutOrStdout(), d)
		})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List access points in range",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(d *eswifi.Device) error {
			aps, err := d.ListAccessPoints()
			if err != nil {
				return err
			}

			return printAccessPoints(cmd.OutOrStdout(), aps)
		})
	},
}

var joinCmd = &cobra.Command{
	Use:   "join [ssid]",
	Short: "Join a wireless network and show the assigned address",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfg.SSID = args[0]
		}
		if cfg.SSID == "" {
			return errors.New("no ssid given")
		}

		return withDevice(func(d *eswifi.Device) error {
			if err := join(d); err != nil {
				return err
			}
			ns, err := d.NetworkSettings()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "joined %s: ip %s gateway %s\n", ns.SSID, ns.IP, ns.Gateway)

			return nil
		})
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <host> <port>",
	Short: "Send an HTTP GET through the module and print the reply",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[1], err)
		}

		return withDevice(func(d *eswifi.Device) error {
			if err := join(d); err != nil {
				return err
			}

			return fetch(cmd.OutOrStdout(), d, args[0], uint16(port))
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept one TCP peer and echo what it sends",
	Long: `serve starts a TCP server socket on the module, waits for a peer and
echoes every received chunk back until the peer goes away or the process
is interrupted. Waiting for the peer cannot be interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withDevice(func(d *eswifi.Device) error {
			if err := join(d); err != nil {
				return err
			}

			return serve(ctx, d)
		})
	},
}

func printInfo(w io.Writer, d *eswifi.Device) error {
	info := d.Info()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "product\t%s (%s)\n", info.ProductName, info.ProductID)
	fmt.Fprintf(tw, "firmware\t%s\n", info.FirmwareRev)
	fmt.Fprintf(tw, "api\t%s\n", info.APIRev)
	fmt.Fprintf(tw, "stack\t%s\n", info.StackRev)
	fmt.Fprintf(tw, "rtos\t%s\n", info.RTOSRev)
	fmt.Fprintf(tw, "cpu clock\t%d MHz\n", info.CPUClock)

	mac, err := d.MACAddress()
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "mac\t%s\n", mac)

	ns, err := d.NetworkSettings()
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "ssid\t%s (%s)\n", ns.SSID, ns.Security)
	fmt.Fprintf(tw, "ip\t%s/%s\n", ns.IP, ns.Mask)
	fmt.Fprintf(tw, "gateway\t%s\n", ns.Gateway)

	return tw.Flush()
}

func printAccessPoints(w io.Writer, aps []eswifi.AccessPoint) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SSID\tBSSID\tRSSI\tCHANNEL\tSECURITY")
	for _, ap := range aps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", ap.SSID, ap.BSSID, ap.RSSI, ap.Channel, ap.Security)
	}

	return tw.Flush()
}

func resolve(d *eswifi.Device, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr, nil
	}

	return d.LookupHost(host)
}

func fetch(w io.Writer, d *eswifi.Device, host string, port uint16) error {
	addr, err := resolve(d, host)
	if err != nil {
		return err
	}

	sock := d.FreeSocket()
	if sock == eswifi.NoSocket {
		return errors.New("no free socket")
	}
	param := eswifi.ConnectionParam{Type: eswifi.TCP, RemoteIP: addr, RemotePort: port}
	if err := d.SetConnectionParam(sock, param); err != nil {
		return err
	}
	if err := d.StartClientConnection(sock); err != nil {
		return err
	}
	defer func() {
		if err := d.StopClientConnection(sock); err != nil {
			logger.Warn("stop client connection", "socket", sock, "error", err)
		}
	}()

	req := fmt.Sprintf("GET %s HTTP/1.0\r\nHost: %s\r\nConnection: close\r\n\r\n", fetchPath, host)
	if _, err := d.Send(sock, []byte(req), readTimeout); err != nil {
		return err
	}

	buf := make([]byte, eswifi.PayloadSize)
	for {
		n, err := d.Receive(sock, buf, readTimeout)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
}

func serve(ctx context.Context, d *eswifi.Device) error {
	sock := d.FreeSocket()
	if sock == eswifi.NoSocket {
		return errors.New("no free socket")
	}
	if err := d.SetConnectionParam(sock, eswifi.ConnectionParam{Type: eswifi.TCP, LocalPort: servePort}); err != nil {
		return err
	}

	mode := eswifi.ModeStream
	if serveBus {
		mode = eswifi.ModeBus
	}

	logger.Info("waiting for peer", "port", servePort)
	peer, err := d.StartServer(sock, mode)
	if err != nil {
		return err
	}
	logger.Info("peer connected", "peer", peer)
	defer func() {
		if err := d.StopServer(sock); err != nil {
			logger.Warn("stop server", "socket", sock, "error", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	chunks := make(chan []byte, 4)

	g.Go(func() error {
		defer close(chunks)
		buf := make([]byte, eswifi.PayloadSize)
		for ctx.Err() == nil {
			n, err := d.Receive(sock, buf, readTimeout)
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			select {
			case chunks <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
			}
		}

		return nil
	})

	g.Go(func() error {
		for chunk := range chunks {
			if _, err := d.Send(sock, chunk, readTimeout); err != nil {
				return err
			}
			logger.Debug("echoed", "bytes", len(chunk))
		}

		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "read-timeout", 5*time.Second, "socket send/receive timeout")

	fetchCmd.Flags().StringVar(&fetchPath, "path", "/", "request path")

	serveCmd.Flags().Uint16Var(&servePort, "port", 8080, "local port to listen on")
	serveCmd.Flags().BoolVar(&serveBus, "bus", false, "poll for peer data instead of waiting for the accept announcement")

	rootCmd.AddCommand(versionCmd, infoCmd, scanCmd, joinCmd, fetchCmd, serveCmd)
}
