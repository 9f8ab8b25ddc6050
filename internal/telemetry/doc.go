// Package telemetry exports dispatch metrics and spans through OpenTelemetry.
package telemetry
