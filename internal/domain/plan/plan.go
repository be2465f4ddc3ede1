// Пакет plan — тарифы подрядчиков и проверка доступа к платным функциям.
// Тарифы упорядочены по возрастанию возможностей, доступ к функции
// даётся явным перечнем тарифов.
package plan

import "slices"

// Тарифы в порядке возрастания возможностей.
const (
	Free         = "free"
	Starter      = "starter"
	Professional = "professional"
	Enterprise   = "enterprise"
)

// planWeight — вес тарифа для сравнения.
var planWeight = map[string]int{
	Free:         0,
	Starter:      1,
	Professional: 2,
	Enterprise:   3,
}

// ScopeProofPlans — тарифы, в которых доступны scope proof.
var ScopeProofPlans = []string{Professional, Enterprise}

// IsValid проверяет, является ли строка известным тарифом.
func IsValid(p string) bool {
	_, ok := planWeight[p]
	return ok
}

// Normalize приводит неизвестный или пустой тариф к free.
func Normalize(p string) string {
	if IsValid(p) {
		return p
	}
	return Free
}

// Allows проверяет, входит ли тариф в список разрешённых.
// Пустой список разрешает любой тариф.
func Allows(current string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	return slices.Contains(allowed, Normalize(current))
}

// AtLeast проверяет, что тариф не ниже минимального.
func AtLeast(current, minimum string) bool {
	return planWeight[Normalize(current)] >= planWeight[Normalize(minimum)]
}
