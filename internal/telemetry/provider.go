package telemetry

type Provider interface {
	Get() Snapshot
}
