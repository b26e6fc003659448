// Package aggregate реализует псевдо-инструменты join и minimum.
//
// Агрегаторы — чистые функции над результатами входов: они не
// запускают процессов и не трогают manifest. Планировщик собирает
// Input из manifest и записывает Result в пространство имён узла.
package aggregate

import (
	"maps"
	"math"
	"slices"

	"github.com/shaiso/pdflow/internal/domain"
)

// Input — результат одного входа агрегатора.
type Input struct {
	// ID — идентификатор входного узла.
	ID domain.NodeID

	// Status — финальный статус входа.
	Status domain.NodeStatus

	// Outputs — артефакты входа (имя → путь).
	Outputs map[string]string

	// Metrics — метрики входа.
	Metrics map[string]float64
}

// Result — результат агрегации.
type Result struct {
	// Status — SUCCESS или ERROR.
	Status domain.NodeStatus

	// Outputs — артефакты, пробрасываемые агрегатором.
	Outputs map[string]string

	// Metrics — метрики, пробрасываемые агрегатором.
	Metrics map[string]float64

	// Selected — выбранный вход (только minimum).
	Selected *domain.NodeID

	// Scores — оценка каждого успешного входа (только minimum).
	Scores map[domain.NodeID]float64

	// Reason — причина ERROR.
	Reason string
}

// Evaluate вызывает агрегатор по виду узла.
func Evaluate(kind domain.NodeKind, inputs []Input, weights map[string]float64) Result {
	switch kind {
	case domain.KindJoin:
		return Join(inputs)
	case domain.KindMinimum:
		return Minimum(inputs, weights)
	default:
		return Result{Status: domain.NodeStatusError, Reason: "not an aggregator: " + kind.String()}
	}
}

// Join требует успеха всех входов.
//
// Артефакты объединяются в порядке входов: при совпадении имён
// побеждает вход, объявленный позже. Метрики не пробрасываются.
func Join(inputs []Input) Result {
	if len(inputs) == 0 {
		return Result{Status: domain.NodeStatusError, Reason: "join has no inputs"}
	}

	outputs := make(map[string]string)
	for _, in := range inputs {
		if in.Status != domain.NodeStatusSuccess {
			return Result{
				Status: domain.NodeStatusError,
				Reason: "input " + in.ID.String() + " is " + string(in.Status),
			}
		}
		maps.Copy(outputs, in.Outputs)
	}

	return Result{
		Status:  domain.NodeStatusSuccess,
		Outputs: outputs,
		Metrics: make(map[string]float64),
	}
}

// Minimum выбирает успешный вход с наименьшей оценкой.
//
// Оценка — сумма weight[m] * metric[m] по всем весам; отсутствующая
// метрика считается нулём. При равенстве побеждает вход, объявленный
// раньше. Вход с NaN или Inf в оценке не может победить. Артефакты и
// метрики победителя пробрасываются дальше.
func Minimum(inputs []Input, weights map[string]float64) Result {
	if len(inputs) == 0 {
		return Result{Status: domain.NodeStatusError, Reason: "minimum has no inputs"}
	}

	var (
		best      *Input
		bestScore float64
	)
	scores := make(map[domain.NodeID]float64)

	for i := range inputs {
		in := &inputs[i]
		if in.Status != domain.NodeStatusSuccess {
			continue
		}
		score := Score(in.Metrics, weights)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			continue
		}
		scores[in.ID] = score
		if best == nil || score < bestScore {
			best = in
			bestScore = score
		}
	}

	if best == nil {
		if len(scores) == 0 && slices.ContainsFunc(inputs, func(in Input) bool {
			return in.Status == domain.NodeStatusSuccess
		}) {
			return Result{Status: domain.NodeStatusError, Reason: "no input has a finite score"}
		}
		return Result{Status: domain.NodeStatusError, Reason: "all inputs failed"}
	}

	selected := best.ID
	return Result{
		Status:   domain.NodeStatusSuccess,
		Outputs:  maps.Clone(nonNilOutputs(best.Outputs)),
		Metrics:  maps.Clone(nonNilMetrics(best.Metrics)),
		Selected: &selected,
		Scores:   scores,
	}
}

// Score вычисляет взвешенную оценку набора метрик. Слагаемые
// суммируются в порядке имён метрик, так что одинаковые входы всегда
// получают одинаковую оценку.
func Score(metrics map[string]float64, weights map[string]float64) float64 {
	var score float64
	for _, name := range slices.Sorted(maps.Keys(weights)) {
		score += weights[name] * metrics[name]
	}
	return score
}

func nonNilOutputs(m map[string]string) map[string]string {
	if m == nil {
		return make(map[string]string)
	}
	return m
}

func nonNilMetrics(m map[string]float64) map[string]float64 {
	if m == nil {
		return make(map[string]float64)
	}
	return m
}
