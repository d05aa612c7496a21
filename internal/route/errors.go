package route

import "github.com/routecodex/routecodex/internal/corex"

func errInvalidRoute(routeID, reason string) error {
	return corex.New(corex.KindInternal, "invalid_route", reason).
		WithDetails(map[string]any{"routeId": routeID})
}

func errNoRoute() error {
	return corex.New(corex.KindRouting, "no_route", "no route pattern matched the request")
}
