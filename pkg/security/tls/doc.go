// Package tls terminates HTTPS for the server.
//
// ServerConfig loads the configured key pair through a CertificateReloader,
// which polls the files' modification times and swaps in a renewed
// certificate without restarting the listener:
//
//	server:
//	  tls:
//	    enabled: true
//	    cert_file: /etc/poebridge/tls.crt
//	    key_file: /etc/poebridge/tls.key
//	    min_version: "1.2"
//	    reload_interval: 5m
package tls
