package services

import (
	"fmt"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
)

func welcomeMessage(shop models.Shop, customer models.Customer, password string) string {
	return fmt.Sprintf("Welcome to %s, %s! Your account is ready.\nLogin: %s\nPassword: %s\n%s",
		shop.Name, customer.FirstName, customer.Phone, password, shop.Website)
}

func appointmentConfirmedMessage(shop models.Shop, customer models.Customer, at time.Time, slot string) string {
	when := at.Format("02.01.2006")
	if slot != "" {
		when += " " + slot
	}
	return fmt.Sprintf("Hello %s, your appointment at %s is confirmed for %s.\nPhone: %s",
		customer.FirstName, shop.Name, when, shop.Phone)
}

func carReadyMessage(shop models.Shop, customer models.Customer, car models.Car) string {
	return fmt.Sprintf("Hello %s, your %s is ready for pickup at %s.\nPhone: %s",
		customer.FirstName, car.Label(), shop.Name, shop.Phone)
}

func serviceReminderMessage(shop models.Shop, customer models.Customer, car models.Car, due int, by time.Time) string {
	return fmt.Sprintf("Hello %s, your %s is due for service at %d km (around %s). Book a visit with %s: %s",
		customer.FirstName, car.Label(), due, by.Format("02.01.2006"), shop.Name, shop.Phone)
}
