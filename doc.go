// Package accounts drives the account lifecycle (signup, confirmation and
// password sign in) against a managed identity provider.
//
// Identity provider:
//   - The provider owns every piece of durable account state: credentials,
//     confirmation codes, status and tokens. This package never hashes
//     passwords or issues tokens, it only sequences provider calls.
//   - IdentityProvider is composed from small capability interfaces
//     (UserFinder, UserCreator, UserConfirmer, PasswordAuthenticator) so
//     adapters and test doubles only implement what they need. See
//     provider/cognito and provider/memory.
//
// Outcomes:
//   - Lifecycle operations return an Outcome. Business conditions such as a
//     duplicate email or a rejected code are statuses, not Go errors.
//     Errors are reserved for cancelled contexts and provider transport
//     failures (see IsProviderUnavailable).
//   - Field errors keep insertion order so forms can redisplay provider
//     messages in the order the provider reported them.
//
// Activity sinks:
//   - ActivitySink receives signup, confirmation and login events. Sinks run
//     best-effort (errors are logged). repository.ActivityRepository persists
//     them with Bun.
package accounts
