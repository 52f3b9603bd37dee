// Package values wraps the native value objects the execution engine
// consumes and produces: function descriptors, generic argument/result
// values, and target data-layout descriptors.
//
// The wrappers are deliberately thin. They carry a ref plus the API
// slice needed to operate on it, and they encode ownership: a
// GenericValue owns its native value until Dispose, while a
// FunctionValue is always a borrow of module-owned state. TargetData is
// the odd one out, see Forget.
package values
