// Package obtopology selects the firewall pipeline for a configuration and
// resolves where it is deployed.
package obtopology
