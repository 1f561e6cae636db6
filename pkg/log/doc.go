/*
Package log provides structured logging for the session network core using zerolog.

A single global logger is initialized once via Init and components derive
child loggers from it with WithComponent, WithPubKey, WithTarget, and
WithServer so that every log line carries enough context (which swarm
target failed, which server a challenge was requested from) without
threading a logger through every call.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	swarmLog := log.WithComponent("swarm")
	swarmLog.Warn().Str("target", target.Address).Msg("evicting snode after repeated failures")

	log.WithTarget(n.Address, n.Port).Error().Err(err).Msg("storage rpc failed")

JSON output is used in production; console output (human-readable,
colorized) is used for local development by setting JSONOutput to false.
*/
package log
