// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import (
	"code.hybscloud.com/kont"
)

// Reify converts a Cont-world task protocol to Expr-world.
// Adapter.Start reifies internally; the explicit bridge exists for
// composing pre-built Expr fragments with closure-based protocols.
func Reify[A any](m kont.Eff[A]) kont.Expr[A] {
	return kont.Reify(m)
}

// Reflect converts an Expr-world task protocol to Cont-world.
func Reflect[A any](m kont.Expr[A]) kont.Eff[A] {
	return kont.Reflect(m)
}
