/*
Package servicemesh provides service mesh components for microservices.

Subpackages:

  - circuitbreaker: circuit breaker pattern, used by the broker adapter to
    stop hammering a dead connection with reconnect attempts.
*/
package servicemesh
