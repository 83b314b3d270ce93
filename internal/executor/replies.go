package executor

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

// locale holds the customer-facing reply templates for one language.
type locale struct {
	confirmedFmt    string // order number, total, currency
	listHeader      string
	listLineFmt     string // index, order number, status, total, currency
	noOrders        string
	askItems        string
	whichOrder      string
	notFoundFmt     string // order id
	refusedFmt      string // order id, status
	cancelledFmt    string // order id
	missingLeadIn   string
	apology         string
	statusNames     map[store.OrderStatus]string
}

// Apology is the reply sent when the pipeline failed mid-turn and no
// better answer exists.
func Apology(lang, fallback string) string {
	return localeFor(lang, fallback).apology
}

var locales = map[string]locale{
	"en": {
		confirmedFmt:  "Your order %s is confirmed. Total: %.2f %s. We will contact you shortly!",
		listHeader:    "Here are your recent orders:",
		listLineFmt:   "%d. Order %s - %s - %.2f %s",
		noOrders:      "You have no orders yet. Would you like to see our products?",
		askItems:      "I could not find the items for your order. Could you tell me which products you would like and how many?",
		whichOrder:    "Which order would you like to cancel? Please tell me the order number.",
		notFoundFmt:   "I could not find order #%d. Could you check the number?",
		refusedFmt:    "Order #%d is already %s and can no longer be cancelled. Please contact us if you need help.",
		cancelledFmt:  "Order #%d has been cancelled.",
		missingLeadIn: "To complete your order I still need: ",
		apology:       "Sorry, something went wrong on our side. Please try again in a moment.",
		statusNames: map[store.OrderStatus]string{
			store.StatusNew: "new", store.StatusPending: "pending",
			store.StatusConfirmed: "confirmed", store.StatusShipped: "shipped",
			store.StatusDelivered: "delivered", store.StatusCancelled: "cancelled",
		},
	},
	"es": {
		confirmedFmt:  "Tu pedido %s está confirmado. Total: %.2f %s. ¡Te contactaremos pronto!",
		listHeader:    "Estos son tus pedidos recientes:",
		listLineFmt:   "%d. Pedido %s - %s - %.2f %s",
		noOrders:      "Todavía no tienes pedidos. ¿Quieres ver nuestros productos?",
		askItems:      "No pude identificar los productos de tu pedido. ¿Me dices qué productos quieres y cuántos?",
		whichOrder:    "¿Qué pedido quieres cancelar? Dime el número de pedido, por favor.",
		notFoundFmt:   "No encontré el pedido #%d. ¿Puedes revisar el número?",
		refusedFmt:    "El pedido #%d ya está %s y no se puede cancelar. Contáctanos si necesitas ayuda.",
		cancelledFmt:  "El pedido #%d ha sido cancelado.",
		missingLeadIn: "Para completar tu pedido todavía necesito: ",
		apology:       "Lo siento, algo salió mal de nuestro lado. Inténtalo de nuevo en un momento.",
		statusNames: map[store.OrderStatus]string{
			store.StatusNew: "nuevo", store.StatusPending: "pendiente",
			store.StatusConfirmed: "confirmado", store.StatusShipped: "enviado",
			store.StatusDelivered: "entregado", store.StatusCancelled: "cancelado",
		},
	},
	"vi": {
		confirmedFmt:  "Đơn hàng %s của bạn đã được xác nhận. Tổng cộng: %.2f %s. Chúng tôi sẽ liên hệ với bạn sớm!",
		listHeader:    "Đây là các đơn hàng gần đây của bạn:",
		listLineFmt:   "%d. Đơn %s - %s - %.2f %s",
		noOrders:      "Bạn chưa có đơn hàng nào. Bạn có muốn xem sản phẩm của chúng tôi không?",
		askItems:      "Mình chưa xác định được sản phẩm trong đơn của bạn. Bạn muốn mua sản phẩm nào và số lượng bao nhiêu?",
		whichOrder:    "Bạn muốn hủy đơn hàng nào? Vui lòng cho mình biết số đơn hàng.",
		notFoundFmt:   "Mình không tìm thấy đơn hàng #%d. Bạn kiểm tra lại số đơn giúp mình nhé?",
		refusedFmt:    "Đơn hàng #%d đã ở trạng thái %s nên không thể hủy. Vui lòng liên hệ với chúng tôi nếu cần hỗ trợ.",
		cancelledFmt:  "Đơn hàng #%d đã được hủy.",
		missingLeadIn: "Để hoàn tất đơn hàng, mình cần thêm: ",
		apology:       "Xin lỗi, đã có lỗi xảy ra từ phía chúng tôi. Bạn vui lòng thử lại sau ít phút nhé.",
		statusNames: map[store.OrderStatus]string{
			store.StatusNew: "mới", store.StatusPending: "chờ xử lý",
			store.StatusConfirmed: "đã xác nhận", store.StatusShipped: "đã gửi",
			store.StatusDelivered: "đã giao", store.StatusCancelled: "đã hủy",
		},
	},
}

func localeFor(lang, fallback string) locale {
	if loc, ok := locales[lang]; ok {
		return loc
	}
	if loc, ok := locales[fallback]; ok {
		return loc
	}
	return locales["en"]
}

func (l locale) orderConfirmed(o *store.Order, currency string) string {
	return fmt.Sprintf(l.confirmedFmt, o.Number, o.Total, currency)
}

func (l locale) orderList(orders []*store.Order, currency string) string {
	var b strings.Builder
	b.WriteString(l.listHeader)
	for i, o := range orders {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(l.listLineFmt, i+1, o.Number, l.statusName(o.Status), o.Total, currency))
	}
	return b.String()
}

func (l locale) orderNotFound(id int64) string {
	return fmt.Sprintf(l.notFoundFmt, id)
}

func (l locale) cancelRefused(o *store.Order) string {
	return fmt.Sprintf(l.refusedFmt, o.ID, l.statusName(o.Status))
}

func (l locale) orderCancelled(o *store.Order) string {
	return fmt.Sprintf(l.cancelledFmt, o.ID)
}

func (l locale) askMissing(missing []string) string {
	return l.missingLeadIn + strings.Join(missing, ", ")
}

func (l locale) statusName(s store.OrderStatus) string {
	if name, ok := l.statusNames[s]; ok {
		return name
	}
	return strings.ToLower(string(s))
}
