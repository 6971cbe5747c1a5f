package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/sync/errgroup"

	apperrors "pricepipe/internal/errors"
)

// SSHOptions describes the bastion used to reach a private database.
type SSHOptions struct {
	Host string
	Port int
	User string
	// KeyPath is a PEM or OpenSSH private key file.
	KeyPath    string
	Passphrase string
	// KnownHostsPath enables host key verification when set.
	KnownHostsPath string
	DialTimeout    time.Duration
}

func (o SSHOptions) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// TunnelProvider connects through an SSH local port forward. The forward
// listens on 127.0.0.1 on a free port and lives exactly as long as the Conn.
type TunnelProvider struct {
	db     Options
	ssh    SSHOptions
	logger *slog.Logger
}

func NewTunnelProvider(db Options, sshOpts SSHOptions, logger *slog.Logger) *TunnelProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &TunnelProvider{db: db, ssh: sshOpts, logger: logger}
}

func (p *TunnelProvider) Connect(ctx context.Context) (*Conn, error) {
	t, err := openTunnel(ctx, p.ssh, p.db.Addr(), p.logger)
	if err != nil {
		return nil, err
	}

	db, err := open(ctx, p.db, t.LocalAddr())
	if err != nil {
		if cerr := t.Close(); cerr != nil {
			p.logger.WarnContext(ctx, "Failed to close tunnel", slog.String("error", cerr.Error()))
		}
		return nil, err
	}

	p.logger.InfoContext(ctx, "Connected to database through tunnel",
		slog.String("local", t.LocalAddr()),
		slog.String("remote", p.db.Addr()),
		slog.String("database", p.db.Name))
	return &Conn{DB: db, closers: []func() error{t.Close}}, nil
}

type tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string
	group    errgroup.Group
	logger   *slog.Logger
}

func clientConfig(opts SSHOptions, logger *slog.Logger) (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(opts.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	var signer ssh.Signer
	if opts.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(opts.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if opts.KnownHostsPath != "" {
		hostKeys, err = knownhosts.New(opts.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
	} else {
		logger.Warn("SSH host key verification disabled", slog.String("host", opts.Addr()))
	}

	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}, nil
}

func openTunnel(ctx context.Context, opts SSHOptions, remote string, logger *slog.Logger) (*tunnel, error) {
	cfg, err := clientConfig(opts, logger)
	if err != nil {
		return nil, apperrors.NewConnectionError("configure ssh", err).WithContext("bastion", opts.Addr())
	}

	dialer := net.Dialer{Timeout: cfg.Timeout}
	raw, err := dialer.DialContext(ctx, "tcp", opts.Addr())
	if err != nil {
		return nil, apperrors.NewConnectionError("dial bastion", err).WithContext("bastion", opts.Addr())
	}
	// The handshake shares the dial timeout and is abandoned when ctx ends.
	_ = raw.SetDeadline(time.Now().Add(cfg.Timeout))
	stop := context.AfterFunc(ctx, func() { _ = raw.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(raw, opts.Addr(), cfg)
	stopped := stop()
	if err == nil && !stopped {
		_ = sshConn.Close()
		err = ctx.Err()
	}
	if err != nil {
		_ = raw.Close()
		return nil, apperrors.NewConnectionError("ssh handshake", err).WithContext("bastion", opts.Addr())
	}
	_ = raw.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		return nil, apperrors.NewConnectionError("listen for tunnel", err)
	}

	t := &tunnel{client: client, listener: listener, remote: remote, logger: logger}
	t.group.Go(t.acceptLoop)

	logger.InfoContext(ctx, "SSH tunnel established",
		slog.String("local", t.LocalAddr()),
		slog.String("bastion", opts.Addr()),
		slog.String("remote", remote))
	return t, nil
}

func (t *tunnel) LocalAddr() string {
	return t.listener.Addr().String()
}

func (t *tunnel) acceptLoop() error {
	for {
		local, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept tunnel connection: %w", err)
		}
		t.group.Go(func() error {
			t.forward(local)
			return nil
		})
	}
}

func (t *tunnel) forward(local net.Conn) {
	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		t.logger.Warn("Tunnel dial failed", slog.String("remote", t.remote), slog.String("error", err.Error()))
		_ = local.Close()
		return
	}

	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			_ = local.Close()
			_ = remote.Close()
		})
	}

	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		_, _ = io.Copy(remote, local)
		closeBoth()
	}()
	go func() {
		defer pipes.Done()
		_, _ = io.Copy(local, remote)
		closeBoth()
	}()
	pipes.Wait()
}

// Close stops accepting, drops the SSH session and waits for the forwarding
// goroutines to exit.
func (t *tunnel) Close() error {
	var errs []error
	if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("close tunnel listener: %w", err))
	}
	if err := t.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("close ssh client: %w", err))
	}
	if err := t.group.Wait(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
