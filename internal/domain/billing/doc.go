// Package billing holds the usage metering and billing-cycle domain model.
//
// The package covers:
//   - The plan catalog: the fixed tiers with their prices, request
//     allowances and overage rates
//   - UsageEvent: an immutable ledger entry for one metered request,
//     bucketed by the billing window it was recorded in
//   - Billing windows: deriving a window's end from its start and the
//     tenant's cycle, and the period key that buckets ledger events
//   - BillingPeriodRecord: the archived outcome of a closed window,
//     including its overage charge
//   - Overage pricing: block-rounded charges for usage past a window's
//     included allowance
//
// Tenants themselves live in the identity domain; this package only
// sees their plan, cycle and usage fields through the services that
// orchestrate both.
package billing
