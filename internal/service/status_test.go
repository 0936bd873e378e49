package service

import (
	"testing"

	"github.com/Qaiser2raza/fireflow-api/internal/enum"
)

func TestValidateItemTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{"pending to fired", enum.ItemStatusPending, enum.ItemStatusFired, false},
		{"fired to preparing", enum.ItemStatusFired, enum.ItemStatusPreparing, false},
		{"fired straight to ready", enum.ItemStatusFired, enum.ItemStatusReady, false},
		{"preparing to ready", enum.ItemStatusPreparing, enum.ItemStatusReady, false},
		{"ready to served", enum.ItemStatusReady, enum.ItemStatusServed, false},
		{"no backward move", enum.ItemStatusReady, enum.ItemStatusPreparing, true},
		{"served is terminal", enum.ItemStatusServed, enum.ItemStatusReady, true},
		{"pending cannot skip", enum.ItemStatusPending, enum.ItemStatusReady, true},
		{"unknown status", "BURNT", enum.ItemStatusReady, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateItemTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateItemTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		want  string
	}{
		{"no items", nil, enum.OrderStatusNew},
		{"all pending", []string{enum.ItemStatusPending, enum.ItemStatusPending}, enum.OrderStatusNew},
		{"fired but not cooking", []string{enum.ItemStatusFired, enum.ItemStatusPending}, enum.OrderStatusNew},
		{"one preparing", []string{enum.ItemStatusPreparing, enum.ItemStatusPending}, enum.OrderStatusPreparing},
		{"preparing beats ready", []string{enum.ItemStatusPreparing, enum.ItemStatusReady}, enum.OrderStatusPreparing},
		{"all ready", []string{enum.ItemStatusReady, enum.ItemStatusReady}, enum.OrderStatusReady},
		{"ready and served", []string{enum.ItemStatusReady, enum.ItemStatusServed}, enum.OrderStatusReady},
		{"ready with one fired", []string{enum.ItemStatusReady, enum.ItemStatusFired}, enum.OrderStatusNew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AggregateStatus(tt.items); got != tt.want {
				t.Errorf("AggregateStatus(%v) = %s, want %s", tt.items, got, tt.want)
			}
		})
	}
}

func TestIsTerminalOrderStatus(t *testing.T) {
	for _, s := range []string{enum.OrderStatusPaid, enum.OrderStatusCancelled} {
		if !IsTerminalOrderStatus(s) {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []string{enum.OrderStatusNew, enum.OrderStatusReady, enum.OrderStatusDelivered} {
		if IsTerminalOrderStatus(s) {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestIsKitchenPhase(t *testing.T) {
	for _, s := range []string{enum.OrderStatusNew, enum.OrderStatusPreparing, enum.OrderStatusReady} {
		if !IsKitchenPhase(s) {
			t.Errorf("expected %s to be kitchen phase", s)
		}
	}
	for _, s := range []string{enum.OrderStatusOutForDelivery, enum.OrderStatusDelivered, enum.OrderStatusPaid, enum.OrderStatusCancelled} {
		if IsKitchenPhase(s) {
			t.Errorf("expected %s to be outside kitchen phase", s)
		}
	}
}

func TestValidateTableTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{"seat a table", enum.TableStatusAvailable, enum.TableStatusOccupied, false},
		{"bus occupied", enum.TableStatusOccupied, enum.TableStatusDirty, false},
		{"bus after payment", enum.TableStatusPaymentPending, enum.TableStatusDirty, false},
		{"back in service", enum.TableStatusDirty, enum.TableStatusAvailable, false},
		{"no declared payment pending", enum.TableStatusOccupied, enum.TableStatusPaymentPending, true},
		{"dirty cannot seat", enum.TableStatusDirty, enum.TableStatusOccupied, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTableTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTableTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}
