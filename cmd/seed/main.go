package main

import (
	"errors"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"propertyhub/internal/config"
	"propertyhub/internal/database"
	"propertyhub/internal/domain"
)

// Seeds a development database: one admin, one manager, a hotel with rooms,
// a house with a visit cost, and a venue. Idempotent by email/title.
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("migration failed")
	}

	admin := seedUser(db, "admin@propertyhub.local", "Admin User", "+255700000001", domain.RoleAdmin)
	seedUser(db, "manager@propertyhub.local", "Manager User", "+255700000002", domain.RoleManager)
	owner := seedUser(db, "owner@propertyhub.local", "House Owner", "+255700000003", domain.RoleCustomer)

	hotel := seedProperty(db, domain.Property{
		OwnerID:    admin.ID,
		Title:      "Kilima View Hotel",
		Type:       domain.PropertyHotel,
		Address:    "12 Uhuru Street",
		City:       "Dar es Salaam",
		RentAmount: 50000,
		RentPeriod: domain.RentPerDay,
	})
	for _, rn := range []string{"101", "102", "201"} {
		seedRoom(db, hotel.ID, rn)
	}

	seedProperty(db, domain.Property{
		OwnerID:    owner.ID,
		Title:      "Mbezi Beach House",
		Type:       domain.PropertyHouse,
		Address:    "Mbezi Beach",
		City:       "Dar es Salaam",
		RentAmount: 800000,
		RentPeriod: domain.RentPerMonth,
		VisitCost:  10000,
	})

	seedProperty(db, domain.Property{
		OwnerID:    admin.ID,
		Title:      "Serena Garden Venue",
		Type:       domain.PropertyVenue,
		Address:    "Msasani Peninsula",
		City:       "Dar es Salaam",
		RentAmount: 0,
		RentPeriod: domain.RentPerDay,
	})

	logrus.Info("seed completed")
}

func seedUser(db *gorm.DB, email, name, phone string, role domain.Role) *domain.User {
	var user domain.User
	err := db.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).Fatal("seed user lookup failed")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme123"), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Fatal("bcrypt failed")
	}
	user = domain.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     name,
		Phone:        phone,
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		logrus.WithError(err).Fatal("seed user create failed")
	}
	logrus.WithField("email", email).Info("seeded user")
	return &user
}

func seedProperty(db *gorm.DB, p domain.Property) *domain.Property {
	var existing domain.Property
	err := db.Where("title = ?", p.Title).First(&existing).Error
	if err == nil {
		return &existing
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).Fatal("seed property lookup failed")
	}
	if err := db.Create(&p).Error; err != nil {
		logrus.WithError(err).Fatal("seed property create failed")
	}
	logrus.WithField("title", p.Title).Info("seeded property")
	return &p
}

func seedRoom(db *gorm.DB, propertyID int64, number string) {
	var existing domain.Room
	err := db.Where("property_id = ? AND room_number = ?", propertyID, number).First(&existing).Error
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).Fatal("seed room lookup failed")
	}
	room := domain.Room{
		PropertyID: propertyID,
		RoomNumber: number,
		RoomType:   "standard",
		Capacity:   2,
		BedType:    "queen",
		BaseRate:   50000,
		Status:     domain.RoomAvailable,
		IsActive:   true,
	}
	if err := db.Create(&room).Error; err != nil {
		logrus.WithError(err).Fatal("seed room create failed")
	}
	logrus.WithFields(logrus.Fields{"property_id": propertyID, "room": number}).Info("seeded room")
}
