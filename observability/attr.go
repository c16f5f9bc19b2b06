package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	MethodKey   attribute.Key = "method"
	ContractKey attribute.Key = "contract"
	StatusKey   attribute.Key = "status"
)

func Method(name string) attribute.KeyValue {
	return MethodKey.String(name)
}

func Contract(id string) attribute.KeyValue {
	return ContractKey.String(id)
}

/*
ErrStatus returns attribute named "status" with value "ok" if the param
err is nil and "err" when it is not.
*/
func ErrStatus(err error) attribute.KeyValue {
	if err != nil {
		return Status("err")
	}
	return Status("ok")
}

func Status(s string) attribute.KeyValue {
	return StatusKey.String(s)
}
