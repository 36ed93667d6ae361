package observability

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

type otlpProtocol string

const (
	otlpProtocolGRPC otlpProtocol = "grpc"
	otlpProtocolHTTP otlpProtocol = "http/protobuf"
)

// ParseOTLPProtocol normalizes a configured OTLP protocol name.
func ParseOTLPProtocol(value string) (string, error) {
	p, err := parseOTLPProtocol(value)
	return string(p), err
}

func parseOTLPProtocol(value string) (otlpProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(otlpProtocolGRPC):
		return otlpProtocolGRPC, nil
	case "http", string(otlpProtocolHTTP):
		return otlpProtocolHTTP, nil
	default:
		return "", fmt.Errorf("unsupported OTLP protocol %q (use grpc or http/protobuf)", value)
	}
}

// exporterTarget is an OTLPConfig with protocol and TLS material resolved.
// tls is nil for plaintext export.
type exporterTarget struct {
	protocol otlpProtocol
	cfg      OTLPConfig
	tls      *tls.Config
}

func resolveTarget(cfg OTLPConfig) (exporterTarget, error) {
	protocol, err := parseOTLPProtocol(cfg.Protocol)
	if err != nil {
		return exporterTarget{}, err
	}
	t := exporterTarget{protocol: protocol, cfg: cfg}
	if !cfg.Insecure {
		if t.tls, err = buildTLSConfig(cfg); err != nil {
			return exporterTarget{}, err
		}
	}
	return t, nil
}

// endpointURL reports whether the endpoint carries a scheme and must be passed as a URL.
func (t exporterTarget) endpointURL() bool {
	return strings.HasPrefix(t.cfg.Endpoint, "http://") || strings.HasPrefix(t.cfg.Endpoint, "https://")
}

func buildTLSConfig(cfg OTLPConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read OTLP CA file: %w", err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("OTLP CA file %s: no PEM certificates", cfg.CAFile)
		}
		tlsConfig.RootCAs = roots
	}

	switch {
	case cfg.ClientCertFile == "" && cfg.ClientKeyFile == "":
	case cfg.ClientCertFile == "" || cfg.ClientKeyFile == "":
		return nil, errors.New("OTLP client certificate needs both cert and key files")
	default:
		pair, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load OTLP client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{pair}
	}

	return tlsConfig, nil
}

func newTraceExporter(ctx context.Context, cfg OTLPConfig) (sdktrace.SpanExporter, error) {
	t, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}
	var exporter sdktrace.SpanExporter
	if t.protocol == otlpProtocolGRPC {
		exporter, err = otlptracegrpc.New(ctx, t.traceGRPCOptions()...)
	} else {
		exporter, err = otlptracehttp.New(ctx, t.traceHTTPOptions()...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter (%s): %w", t.protocol, err)
	}
	return exporter, nil
}

func (t exporterTarget) traceGRPCOptions() []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.cfg.Endpoint)}
	if t.tls == nil {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(t.tls)))
	}
	if len(t.cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(t.cfg.Headers))
	}
	if t.cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(t.cfg.Timeout))
	}
	if t.cfg.Gzip {
		opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
	}
	return opts
}

func (t exporterTarget) traceHTTPOptions() []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	if t.endpointURL() {
		opts = append(opts, otlptracehttp.WithEndpointURL(t.cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(t.cfg.Endpoint))
	}
	if t.tls == nil {
		opts = append(opts, otlptracehttp.WithInsecure())
	} else {
		opts = append(opts, otlptracehttp.WithTLSClientConfig(t.tls))
	}
	if len(t.cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(t.cfg.Headers))
	}
	if t.cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(t.cfg.Timeout))
	}
	if t.cfg.Gzip {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	return opts
}

func newLogExporter(ctx context.Context, cfg OTLPConfig) (log.Exporter, error) {
	t, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}
	var exporter log.Exporter
	if t.protocol == otlpProtocolGRPC {
		exporter, err = otlploggrpc.New(ctx, t.logGRPCOptions()...)
	} else {
		exporter, err = otlploghttp.New(ctx, t.logHTTPOptions()...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter (%s): %w", t.protocol, err)
	}
	return exporter, nil
}

func (t exporterTarget) logGRPCOptions() []otlploggrpc.Option {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(t.cfg.Endpoint)}
	if t.tls == nil {
		opts = append(opts, otlploggrpc.WithInsecure())
	} else {
		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(t.tls)))
	}
	if len(t.cfg.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(t.cfg.Headers))
	}
	if t.cfg.Timeout > 0 {
		opts = append(opts, otlploggrpc.WithTimeout(t.cfg.Timeout))
	}
	if t.cfg.Gzip {
		opts = append(opts, otlploggrpc.WithCompressor("gzip"))
	}
	return opts
}

func (t exporterTarget) logHTTPOptions() []otlploghttp.Option {
	var opts []otlploghttp.Option
	if t.endpointURL() {
		opts = append(opts, otlploghttp.WithEndpointURL(t.cfg.Endpoint))
	} else {
		opts = append(opts, otlploghttp.WithEndpoint(t.cfg.Endpoint))
	}
	if t.tls == nil {
		opts = append(opts, otlploghttp.WithInsecure())
	} else {
		opts = append(opts, otlploghttp.WithTLSClientConfig(t.tls))
	}
	if len(t.cfg.Headers) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(t.cfg.Headers))
	}
	if t.cfg.Timeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(t.cfg.Timeout))
	}
	if t.cfg.Gzip {
		opts = append(opts, otlploghttp.WithCompression(otlploghttp.GzipCompression))
	}
	return opts
}
