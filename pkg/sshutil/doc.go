// Package sshutil provides the SSH and SFTP plumbing used to manage a DNS
// configuration file on a remote host.
//
// The package provides three components:
//
//   - [Client]: a lazily dialed SSH connection with host key verification
//   - [SFTPFileSystem]: implements [FileSystem] over SFTP
//   - [SSHCommandRunner]: implements [CommandRunner] over SSH exec
//
// # Basic Usage
//
//	client, err := sshutil.NewClient(&sshutil.Config{
//		Host:           "dns.lan",
//		User:           "nat",
//		KeyFile:        "/run/secrets/ssh_key",
//		KnownHostsFile: "/etc/ssh/ssh_known_hosts",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	fs := sshutil.NewSFTPFileSystem(client)
//	data, err := fs.ReadFile(ctx, "/etc/dnsmasq.d/clouddns-nat.conf")
//
//	runner := sshutil.NewSSHCommandRunner(client)
//	err = runner.Run(ctx, "systemctl reload dnsmasq")
//
// # Security Considerations
//
// Host keys are verified against KnownHostsFile when it is set. Without it
// every host key is accepted and a warning is logged on each connection.
package sshutil
