package order

import "sort"

// ActiveOrders returns orders that have not reached a final status.
func ActiveOrders(orders []Order) []Order {
	return filter(orders, func(o Order) bool { return !IsFinal(o.Status) })
}

func OrdersByStatus(orders []Order, s Status) []Order {
	return filter(orders, func(o Order) bool { return o.Status == s })
}

// KitchenOrders returns the orders the kitchen is working on.
func KitchenOrders(orders []Order) []Order {
	return filter(orders, func(o Order) bool {
		switch o.Status {
		case StatusConfirmed, StatusPreparing, StatusReady:
			return true
		}
		return false
	})
}

// BySyncStatus returns orders whose sync status is one of statuses, oldest first.
func BySyncStatus(orders []Order, statuses ...SyncStatus) []Order {
	want := make(map[SyncStatus]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	out := filter(orders, func(o Order) bool {
		_, ok := want[o.SyncStatus]
		return ok
	})
	SortByCreation(out)
	return out
}

// SortByCreation orders by creation time ascending, then by id.
func SortByCreation(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

type Statistics struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Active         int `json:"active"`
	Cancelled      int `json:"cancelled"`
	CompletionRate int `json:"completionRate"`
}

// ComputeStatistics summarises a set of orders. CompletionRate is the rounded
// percentage of delivered orders.
func ComputeStatistics(orders []Order) Statistics {
	var st Statistics
	st.Total = len(orders)
	for _, o := range orders {
		switch {
		case o.Status == StatusDelivered:
			st.Completed++
		case o.Status == StatusCancelled:
			st.Cancelled++
		default:
			st.Active++
		}
	}
	if st.Total > 0 {
		st.CompletionRate = (st.Completed*100 + st.Total/2) / st.Total
	}
	return st
}

func filter(orders []Order, keep func(Order) bool) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}
