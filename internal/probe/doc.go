// Package probe implements the outbound HTTP work behind queue items:
// site audits that classify a paper's homepage and feed, and contact
// lookups that scrape addresses from likely pages. Probes are best
// effort; a paper that cannot be reached is a finding, not an error.
package probe
