package xid_test

import (
	"fmt"

	"github.com/omeyang/xcorr/pkg/util/xid"
)

func ExampleParseTraceID() {
	parts := xid.ParseTraceID("6553f100-0123456789ab-order-api")
	fmt.Println(parts.Valid, parts.Timestamp, parts.Random, parts.ServiceShort)

	bad := xid.ParseTraceID("invalid")
	fmt.Println(bad.Valid, bad.Raw)

	// Output:
	// true 1700000000 0123456789ab order-api
	// false invalid
}
